package auction

import (
	"fmt"
	"slices"

	"github.com/draftroom/auction-backend/internal/models"
)

// statusTransitions is the full lifecycle graph. Archived is absorbing.
var statusTransitions = map[models.Status][]models.Status{
	models.StatusDraft:      {models.StatusInProgress, models.StatusArchived},
	models.StatusInProgress: {models.StatusPaused, models.StatusComplete, models.StatusArchived},
	models.StatusPaused:     {models.StatusInProgress, models.StatusComplete, models.StatusArchived},
	models.StatusComplete:   {models.StatusArchived},
	models.StatusArchived:   {},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// A self-transition is always allowed (and is a no-op when applied).
func CanTransition(from, to models.Status) bool {
	if from == to {
		return true
	}
	return slices.Contains(statusTransitions[from], to)
}

func applySetStatus(s *State, cmd Command) ([]Event, error) {
	if cmd.Actor.Role != models.RoleAuctionMaster {
		return nil, fmt.Errorf("only the auction master may change auction status: %w", ErrNotAuthorized)
	}
	from := s.Auction.Status
	to := cmd.Status
	if from == to {
		return nil, nil
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}

	s.Auction.Status = to
	s.Auction.ModifiedDate = cmd.Now
	switch to {
	case models.StatusInProgress:
		if s.Auction.StartedDate == nil {
			t := cmd.Now
			s.Auction.StartedDate = &t
		}
	case models.StatusComplete:
		if s.Auction.CompletedDate == nil {
			t := cmd.Now
			s.Auction.CompletedDate = &t
		}
	}

	return []Event{{
		Type:   EvtStatusChanged,
		Scope:  ScopeAuction,
		Status: to,
		UserID: cmd.Actor.UserID,
		At:     cmd.Now,
	}}, nil
}
