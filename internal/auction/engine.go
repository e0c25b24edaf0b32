package auction

import (
	"fmt"
	"slices"
	"time"

	"github.com/draftroom/auction-backend/internal/models"
)

// Actor identifies who issued a command, as resolved from their session.
type Actor struct {
	UserID              string
	UserName            string
	Role                models.Role
	TeamID              string
	ReconnectionPending bool
}

type CommandType string

const (
	CmdNominate     CommandType = "Nominate"
	CmdPlaceBid     CommandType = "PlaceBid"
	CmdPass         CommandType = "Pass"
	CmdEndBid       CommandType = "EndCurrentBid"
	CmdAssignSchool CommandType = "AssignSchoolToPosition"
	CmdSetStatus    CommandType = "SetStatus"
)

// Command is one state-mutating request; unused fields stay zero. Now is
// injected by the caller so the engine stays deterministic under test.
type Command struct {
	Type     CommandType
	Actor    Actor
	SchoolID string
	Amount   int
	TeamID   string
	SlotID   string
	Status   models.Status
	Now      time.Time
}

// Apply validates cmd against s and, if legal, mutates s and returns the
// events to publish. On error s is left untouched: every validation completes
// before the first mutation. The caller owns serialization per auction.
func Apply(s *State, cmd Command) ([]Event, error) {
	if s.Auction.Status == models.StatusArchived && cmd.Type != CmdSetStatus {
		return nil, fmt.Errorf("auction is archived: %w", ErrInvalidState)
	}

	switch cmd.Type {
	case CmdNominate:
		return applyNominate(s, cmd)
	case CmdPlaceBid:
		return applyPlaceBid(s, cmd)
	case CmdPass:
		return applyPass(s, cmd)
	case CmdEndBid:
		return applyEndBid(s, cmd)
	case CmdAssignSchool:
		return applyAssign(s, cmd)
	case CmdSetStatus:
		return applySetStatus(s, cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

// biddingTeam resolves the actor to the team it bids for. Only coaches act
// for a team; everyone else is rejected here.
func biddingTeam(s *State, a Actor) (*models.Team, error) {
	switch a.Role {
	case models.RoleTeamCoach, models.RoleProxyCoach:
	case models.RoleAuctionMaster, models.RoleViewer:
		return nil, fmt.Errorf("role %s cannot bid: %w", a.Role, ErrNotAuthorized)
	default:
		return nil, fmt.Errorf("unknown role %q: %w", a.Role, ErrNotAuthorized)
	}
	if a.ReconnectionPending {
		return nil, fmt.Errorf("reconnection pending approval: %w", ErrNotAuthorized)
	}
	t := s.Teams[a.TeamID]
	if t == nil {
		return nil, fmt.Errorf("team %q: %w", a.TeamID, ErrNotFound)
	}
	return t, nil
}

func applyNominate(s *State, cmd Command) ([]Event, error) {
	if s.Auction.Status != models.StatusInProgress {
		return nil, fmt.Errorf("auction is %s: %w", s.Auction.Status, ErrInvalidState)
	}
	if s.Round != nil {
		return nil, fmt.Errorf("a nomination is already active: %w", ErrInvalidState)
	}
	team, err := biddingTeam(s, cmd.Actor)
	if err != nil {
		return nil, err
	}
	nominator, ok := s.NominatingTeam()
	if !ok || nominator != team.ID {
		return nil, fmt.Errorf("not %s's turn to nominate: %w", team.Name, ErrInvalidState)
	}
	if team.RemainingBudget < 1 {
		return nil, fmt.Errorf("nomination requires at least $1: %w", ErrBudgetExceeded)
	}
	school := s.Schools[cmd.SchoolID]
	if school == nil {
		return nil, fmt.Errorf("school %q: %w", cmd.SchoolID, ErrNotFound)
	}
	if !school.IsAvailable {
		return nil, fmt.Errorf("school %s already won: %w", school.Name, ErrInvalidState)
	}

	s.Round = &Round{
		SchoolID:  school.ID,
		HighBid:   1,
		HighTeam:  team.ID,
		Passed:    make(map[string]bool),
		StartedAt: cmd.Now,
	}
	// Pin the cursor to the actual nominator: when full teams were skipped
	// over, advancing from the stale cursor would hand this team the very
	// next nomination as well.
	s.Cursor = slices.Index(s.Order, team.ID)
	s.Auction.CurrentSchool = school.ID

	return []Event{{
		Type:     EvtSchoolNominated,
		Scope:    ScopeAuction,
		TeamID:   team.ID,
		SchoolID: school.ID,
		Amount:   1,
		At:       cmd.Now,
	}}, nil
}

func applyPlaceBid(s *State, cmd Command) ([]Event, error) {
	if s.Auction.Status != models.StatusInProgress {
		return nil, fmt.Errorf("auction is %s: %w", s.Auction.Status, ErrInvalidState)
	}
	if s.Round == nil {
		return nil, fmt.Errorf("no active nomination: %w", ErrInvalidState)
	}
	team, err := biddingTeam(s, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if cmd.SchoolID != "" && cmd.SchoolID != s.Round.SchoolID {
		return nil, fmt.Errorf("bid targets %q but %q is under nomination: %w",
			cmd.SchoolID, s.Round.SchoolID, ErrInvalidState)
	}
	if s.OpenSlotCount(team.ID) == 0 {
		return nil, fmt.Errorf("%s has no open roster slot: %w", team.Name, ErrInvalidState)
	}
	if s.Round.Passed[team.ID] {
		return nil, fmt.Errorf("%s has already passed this round: %w", team.Name, ErrInvalidState)
	}
	if cmd.Amount <= s.Round.HighBid {
		return nil, fmt.Errorf("bid $%d does not exceed current high bid $%d: %w",
			cmd.Amount, s.Round.HighBid, ErrInvalidState)
	}
	if ceiling := s.maxBid(team.ID); cmd.Amount > ceiling {
		return nil, fmt.Errorf("bid $%d exceeds ceiling $%d: %w", cmd.Amount, ceiling, ErrBudgetExceeded)
	}

	s.Round.HighBid = cmd.Amount
	s.Round.HighTeam = team.ID
	// Every other team must re-decide against the new price.
	clear(s.Round.Passed)

	return []Event{{
		Type:     EvtBidPlaced,
		Scope:    ScopeAuction,
		TeamID:   team.ID,
		SchoolID: s.Round.SchoolID,
		Amount:   cmd.Amount,
		At:       cmd.Now,
	}}, nil
}

func applyPass(s *State, cmd Command) ([]Event, error) {
	if s.Auction.Status != models.StatusInProgress {
		return nil, fmt.Errorf("auction is %s: %w", s.Auction.Status, ErrInvalidState)
	}
	if s.Round == nil {
		return nil, fmt.Errorf("no active nomination: %w", ErrInvalidState)
	}
	team, err := biddingTeam(s, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if s.OpenSlotCount(team.ID) == 0 {
		return nil, fmt.Errorf("%s has no open roster slot: %w", team.Name, ErrInvalidState)
	}
	if team.ID == s.Round.HighTeam {
		return nil, fmt.Errorf("high bidder cannot pass: %w", ErrInvalidState)
	}
	if s.Round.Passed[team.ID] {
		// Repeat pass is harmless; succeed without another broadcast.
		return nil, nil
	}

	s.Round.Passed[team.ID] = true
	events := []Event{{
		Type:     EvtPlayerPassed,
		Scope:    ScopeAuction,
		TeamID:   team.ID,
		SchoolID: s.Round.SchoolID,
		At:       cmd.Now,
	}}

	if s.roundComplete() {
		events = append(events, resolveRound(s, cmd.Now)...)
	}
	return events, nil
}

func applyEndBid(s *State, cmd Command) ([]Event, error) {
	if cmd.Actor.Role != models.RoleAuctionMaster {
		return nil, fmt.Errorf("only the auction master may end bidding: %w", ErrNotAuthorized)
	}
	if s.Auction.Status != models.StatusInProgress {
		return nil, fmt.Errorf("auction is %s: %w", s.Auction.Status, ErrInvalidState)
	}
	if s.Round == nil {
		return nil, fmt.Errorf("no active nomination: %w", ErrInvalidState)
	}
	return resolveRound(s, cmd.Now), nil
}

// roundComplete reports whether every eligible team except the high bidder
// has passed. Teams with full rosters do not count either way.
func (s *State) roundComplete() bool {
	for _, id := range s.eligibleTeams() {
		if id == s.Round.HighTeam {
			continue
		}
		if !s.Round.Passed[id] {
			return false
		}
	}
	return true
}

// resolveRound settles the active round: the high bidder wins the school at
// the high bid, budgets and rosters update, and nomination order advances.
// When no open slot remains anywhere the auction completes automatically.
func resolveRound(s *State, now time.Time) []Event {
	r := s.Round
	school := s.Schools[r.SchoolID]
	winner := s.Teams[r.HighTeam]

	school.IsAvailable = false
	school.WinnerTeamID = winner.ID
	school.FinalPrice = r.HighBid
	winner.RemainingBudget -= r.HighBid

	events := []Event{
		{Type: EvtBiddingEnded, Scope: ScopeAuction, SchoolID: school.ID, TeamID: winner.ID, Amount: r.HighBid, At: now},
		{Type: EvtSchoolWon, Scope: ScopeAuction, SchoolID: school.ID, TeamID: winner.ID, Amount: r.HighBid, At: now},
	}

	if slot, ok := autoAssignSlot(s, winner.ID, school); ok {
		slot.SchoolID = school.ID
		events = append(events, Event{
			Type:     EvtSchoolAssigned,
			Scope:    ScopeAuction,
			TeamID:   winner.ID,
			SchoolID: school.ID,
			SlotID:   slot.ID,
			At:       now,
		})
	}
	if s.OpenSlotCount(winner.ID) == 0 {
		winner.IsActive = false
	}

	s.Round = nil
	s.Auction.CurrentSchool = ""
	s.Auction.ModifiedDate = now

	if !s.advanceCursor() {
		// Every roster is full; nothing left to nominate.
		if s.Auction.Status == models.StatusInProgress {
			s.Auction.Status = models.StatusComplete
			if s.Auction.CompletedDate == nil {
				t := now
				s.Auction.CompletedDate = &t
			}
			events = append(events, Event{
				Type: EvtStatusChanged, Scope: ScopeAuction, Status: models.StatusComplete, At: now,
			})
		}
	}
	return events
}

func applyAssign(s *State, cmd Command) ([]Event, error) {
	team := s.Teams[cmd.TeamID]
	if team == nil {
		return nil, fmt.Errorf("team %q: %w", cmd.TeamID, ErrNotFound)
	}
	switch cmd.Actor.Role {
	case models.RoleAuctionMaster:
		// Master override, e.g. on behalf of a disconnected winner.
	case models.RoleTeamCoach, models.RoleProxyCoach:
		if cmd.Actor.TeamID != team.ID {
			return nil, fmt.Errorf("cannot assign for another team: %w", ErrNotAuthorized)
		}
	default:
		return nil, fmt.Errorf("role %s cannot assign: %w", cmd.Actor.Role, ErrNotAuthorized)
	}
	if s.Auction.Status == models.StatusDraft {
		return nil, fmt.Errorf("auction has not started: %w", ErrInvalidState)
	}

	school := s.Schools[cmd.SchoolID]
	if school == nil {
		return nil, fmt.Errorf("school %q: %w", cmd.SchoolID, ErrNotFound)
	}
	if school.WinnerTeamID != team.ID {
		return nil, fmt.Errorf("school %s was not won by %s: %w", school.Name, team.Name, ErrInvalidState)
	}

	var target *models.RosterSlot
	for _, sl := range s.Slots[team.ID] {
		if sl.ID == cmd.SlotID {
			target = sl
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("slot %q: %w", cmd.SlotID, ErrNotFound)
	}
	if target.SchoolID == school.ID {
		return nil, nil // already there
	}
	if target.Filled() {
		return nil, fmt.Errorf("slot %s is already filled: %w", target.ID, ErrInvalidSlot)
	}
	if !target.Admits(school.Position) {
		return nil, fmt.Errorf("slot position %s cannot hold a %s school: %w",
			target.Position, school.Position, ErrInvalidSlot)
	}

	// Moving out of an earlier auto-assignment vacates the old slot.
	for _, sl := range s.Slots[team.ID] {
		if sl.SchoolID == school.ID {
			sl.SchoolID = ""
		}
	}
	target.SchoolID = school.ID
	if s.OpenSlotCount(team.ID) == 0 {
		team.IsActive = false
	}
	s.Auction.ModifiedDate = cmd.Now

	return []Event{{
		Type:     EvtSchoolAssigned,
		Scope:    ScopeAuction,
		TeamID:   team.ID,
		SchoolID: school.ID,
		SlotID:   target.ID,
		At:       cmd.Now,
	}}, nil
}
