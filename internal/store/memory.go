package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/draftroom/auction-backend/internal/models"
)

// Memory is a concurrency-safe in-memory Store. It is the default backend
// and the test double for everything above it.
type Memory struct {
	mu       sync.RWMutex
	auctions map[string]models.Auction
	users    map[string]models.User          // user id -> user
	byCred   map[string]string               // credential -> user id
	teams    map[string]models.Team          // team id -> team
	schools  map[string]models.AuctionSchool // auction-school id -> school
	slots    map[string]models.RosterSlot    // slot id -> slot
}

func NewMemory() *Memory {
	return &Memory{
		auctions: make(map[string]models.Auction),
		users:    make(map[string]models.User),
		byCred:   make(map[string]string),
		teams:    make(map[string]models.Team),
		schools:  make(map[string]models.AuctionSchool),
		slots:    make(map[string]models.RosterSlot),
	}
}

func (m *Memory) CreateAuction(_ context.Context, a models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[a.ID] = a
	return nil
}

func (m *Memory) LoadAuction(_ context.Context, id string) (models.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[id]
	if !ok {
		return models.Auction{}, fmt.Errorf("load auction %s: %w", id, ErrAuctionNotFound)
	}
	return a, nil
}

func (m *Memory) FindAuctionByJoinCode(_ context.Context, code string) (models.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.auctions {
		if a.JoinCode == code && a.Status != models.StatusArchived {
			return a, nil
		}
	}
	return models.Auction{}, fmt.Errorf("join code %s: %w", code, ErrAuctionNotFound)
}

func (m *Memory) CodeInUse(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.auctions {
		if a.Status == models.StatusArchived {
			continue
		}
		if a.JoinCode == code || a.RecoveryCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CreateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.AuctionID == u.AuctionID &&
			strings.EqualFold(existing.DisplayName, u.DisplayName) {
			return fmt.Errorf("create user %q: %w", u.DisplayName, ErrDuplicateName)
		}
	}
	m.users[u.ID] = u
	m.byCred[u.Credential] = u.ID
	return nil
}

func (m *Memory) LoadUsersForAuction(_ context.Context, auctionID string) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.User
	for _, u := range m.users {
		if u.AuctionID == auctionID {
			uc := u
			out = append(out, &uc)
		}
	}
	return out, nil
}

func (m *Memory) FindUserByCredential(_ context.Context, credential string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCred[credential]
	if !ok {
		return models.User{}, fmt.Errorf("find user by credential: %w", ErrUserNotFound)
	}
	return m.users[id], nil
}

func (m *Memory) CreateTeam(_ context.Context, t models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = t
	return nil
}

func (m *Memory) LoadTeamsForAuction(_ context.Context, auctionID string) ([]*models.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Team
	for _, t := range m.teams {
		if t.AuctionID == auctionID {
			tc := t
			out = append(out, &tc)
		}
	}
	return out, nil
}

func (m *Memory) CreateSchool(_ context.Context, s models.AuctionSchool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[s.ID] = s
	return nil
}

func (m *Memory) LoadSchoolsForAuction(_ context.Context, auctionID string) ([]*models.AuctionSchool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.AuctionSchool
	for _, s := range m.schools {
		if s.AuctionID == auctionID {
			sc := s
			out = append(out, &sc)
		}
	}
	return out, nil
}

func (m *Memory) CreateSlot(_ context.Context, s models.RosterSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = s
	return nil
}

func (m *Memory) LoadSlotsForAuction(_ context.Context, auctionID string) ([]*models.RosterSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teamIDs := make(map[string]bool)
	for _, t := range m.teams {
		if t.AuctionID == auctionID {
			teamIDs[t.ID] = true
		}
	}
	var out []*models.RosterSlot
	for _, s := range m.slots {
		if teamIDs[s.TeamID] {
			sc := s
			out = append(out, &sc)
		}
	}
	return out, nil
}

func (m *Memory) SaveAuctionState(_ context.Context, d Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Auction != nil {
		m.auctions[d.Auction.ID] = *d.Auction
	}
	for _, u := range d.Users {
		m.users[u.ID] = *u
		m.byCred[u.Credential] = u.ID
	}
	for _, t := range d.Teams {
		m.teams[t.ID] = *t
	}
	for _, s := range d.Schools {
		m.schools[s.ID] = *s
	}
	for _, s := range d.Slots {
		m.slots[s.ID] = *s
	}
	return nil
}
