package store

import (
	"context"
	"errors"

	"github.com/draftroom/auction-backend/internal/models"
)

var ErrAuctionNotFound = errors.New("auction not found")
var ErrUserNotFound = errors.New("user not found")
var ErrDuplicateName = errors.New("display name already taken")

// Delta is one transactional commit of auction state: whatever an accepted
// command touched. Nil/empty fields are left alone.
type Delta struct {
	Auction *models.Auction
	Users   []*models.User
	Teams   []*models.Team
	Schools []*models.AuctionSchool
	Slots   []*models.RosterSlot
}

// Store is the external data-access interface the engine persists through.
// Implementations must commit SaveAuctionState atomically: a failure leaves
// none of the delta applied.
type Store interface {
	CreateAuction(ctx context.Context, a models.Auction) error
	LoadAuction(ctx context.Context, id string) (models.Auction, error)
	FindAuctionByJoinCode(ctx context.Context, code string) (models.Auction, error)
	// CodeInUse checks both join and recovery codes of non-archived auctions.
	CodeInUse(ctx context.Context, code string) (bool, error)

	CreateUser(ctx context.Context, u models.User) error
	LoadUsersForAuction(ctx context.Context, auctionID string) ([]*models.User, error)
	FindUserByCredential(ctx context.Context, credential string) (models.User, error)

	CreateTeam(ctx context.Context, t models.Team) error
	LoadTeamsForAuction(ctx context.Context, auctionID string) ([]*models.Team, error)

	CreateSchool(ctx context.Context, s models.AuctionSchool) error
	LoadSchoolsForAuction(ctx context.Context, auctionID string) ([]*models.AuctionSchool, error)

	CreateSlot(ctx context.Context, s models.RosterSlot) error
	LoadSlotsForAuction(ctx context.Context, auctionID string) ([]*models.RosterSlot, error)

	SaveAuctionState(ctx context.Context, d Delta) error
}
