// Package postgres is the GORM-backed Store used when DATABASE_URL is set.
// SaveAuctionState commits each delta in one transaction, which is what lets
// the engine promise read-your-writes before any event goes out.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/draftroom/auction-backend/internal/models"
	"github.com/draftroom/auction-backend/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Auction{}, &models.User{}, &models.Team{},
		&models.AuctionSchool{}, &models.RosterSlot{},
	); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateAuction(ctx context.Context, a models.Auction) error {
	return s.db.WithContext(ctx).Create(&a).Error
}

func (s *Store) LoadAuction(ctx context.Context, id string) (models.Auction, error) {
	var a models.Auction
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Auction{}, fmt.Errorf("load auction %s: %w", id, store.ErrAuctionNotFound)
	}
	return a, err
}

func (s *Store) FindAuctionByJoinCode(ctx context.Context, code string) (models.Auction, error) {
	var a models.Auction
	err := s.db.WithContext(ctx).
		Where("join_code = ? AND status <> ?", code, models.StatusArchived).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Auction{}, fmt.Errorf("join code %s: %w", code, store.ErrAuctionNotFound)
	}
	return a, err
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Auction{}).
		Where("(join_code = ? OR recovery_code = ?) AND status <> ?", code, code, models.StatusArchived).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("auction_id = ? AND LOWER(display_name) = ?", u.AuctionID, strings.ToLower(u.DisplayName)).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("create user %q: %w", u.DisplayName, store.ErrDuplicateName)
	}
	return s.db.WithContext(ctx).Create(&u).Error
}

func (s *Store) LoadUsersForAuction(ctx context.Context, auctionID string) ([]*models.User, error) {
	var out []*models.User
	err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).Find(&out).Error
	return out, err
}

func (s *Store) FindUserByCredential(ctx context.Context, credential string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("credential = ?", credential).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("find user by credential: %w", store.ErrUserNotFound)
	}
	return u, err
}

func (s *Store) CreateTeam(ctx context.Context, t models.Team) error {
	return s.db.WithContext(ctx).Create(&t).Error
}

func (s *Store) LoadTeamsForAuction(ctx context.Context, auctionID string) ([]*models.Team, error) {
	var out []*models.Team
	err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).Find(&out).Error
	return out, err
}

func (s *Store) CreateSchool(ctx context.Context, sc models.AuctionSchool) error {
	return s.db.WithContext(ctx).Create(&sc).Error
}

func (s *Store) LoadSchoolsForAuction(ctx context.Context, auctionID string) ([]*models.AuctionSchool, error) {
	var out []*models.AuctionSchool
	err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).Find(&out).Error
	return out, err
}

func (s *Store) CreateSlot(ctx context.Context, sl models.RosterSlot) error {
	return s.db.WithContext(ctx).Create(&sl).Error
}

func (s *Store) LoadSlotsForAuction(ctx context.Context, auctionID string) ([]*models.RosterSlot, error) {
	var out []*models.RosterSlot
	err := s.db.WithContext(ctx).
		Where("team_id IN (?)", s.db.Model(&models.Team{}).Select("id").Where("auction_id = ?", auctionID)).
		Find(&out).Error
	return out, err
}

func (s *Store) SaveAuctionState(ctx context.Context, d store.Delta) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d.Auction != nil {
			if err := tx.Save(d.Auction).Error; err != nil {
				return err
			}
		}
		for _, u := range d.Users {
			if err := tx.Save(u).Error; err != nil {
				return err
			}
		}
		for _, t := range d.Teams {
			if err := tx.Save(t).Error; err != nil {
				return err
			}
		}
		for _, sc := range d.Schools {
			if err := tx.Save(sc).Error; err != nil {
				return err
			}
		}
		for _, sl := range d.Slots {
			if err := tx.Save(sl).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
