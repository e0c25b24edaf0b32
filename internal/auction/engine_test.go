package auction

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/draftroom/auction-backend/internal/models"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// newTestState builds an in-progress auction with the given number of teams,
// each with the budget and two open slots ("qb" and "flex"), plus schools
// X/Y/Z at position "qb".
func newTestState(teams int, budget int) *State {
	a := models.Auction{ID: "a1", Name: "test", Status: models.StatusInProgress,
		CreatedDate: testNow, ModifiedDate: testNow}

	var ts []*models.Team
	var slots []*models.RosterSlot
	for i := 0; i < teams; i++ {
		id := fmt.Sprintf("team%c", 'A'+i)
		ts = append(ts, &models.Team{
			ID: id, AuctionID: "a1", Name: id,
			Budget: budget, RemainingBudget: budget,
			NominationOrder: i, IsActive: true,
		})
		slots = append(slots,
			&models.RosterSlot{ID: id + "-s0", TeamID: id, Position: "qb", Index: 0},
			&models.RosterSlot{ID: id + "-s1", TeamID: id, Position: models.PositionFlex, Index: 1},
		)
	}

	var schools []*models.AuctionSchool
	for _, n := range []string{"X", "Y", "Z", "W", "V", "U"} {
		schools = append(schools, &models.AuctionSchool{
			ID: "school" + n, AuctionID: "a1", SchoolID: "s" + n, Name: n,
			Position: "qb", IsAvailable: true,
			ProjectedPoints: decimal.NewFromInt(100),
		})
	}
	return NewState(a, ts, schools, slots)
}

func coach(teamID string) Actor {
	return Actor{UserID: "u-" + teamID, Role: models.RoleTeamCoach, TeamID: teamID}
}

func master() Actor {
	return Actor{UserID: "u-master", Role: models.RoleAuctionMaster}
}

func mustApply(t *testing.T, s *State, cmd Command) []Event {
	t.Helper()
	if cmd.Now.IsZero() {
		cmd.Now = testNow
	}
	events, err := Apply(s, cmd)
	if err != nil {
		t.Fatalf("Apply(%s): %v", cmd.Type, err)
	}
	return events
}

func TestNominate_TurnOrderAndBudget(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(s *State)
		cmd     Command
		wantErr error
	}{
		{
			name: "first team in order may nominate",
			cmd:  Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"},
		},
		{
			name:    "out of turn nomination rejected",
			cmd:     Command{Type: CmdNominate, Actor: coach("teamB"), SchoolID: "schoolX"},
			wantErr: ErrInvalidState,
		},
		{
			name:    "viewer cannot nominate",
			cmd:     Command{Type: CmdNominate, Actor: Actor{UserID: "v", Role: models.RoleViewer}, SchoolID: "schoolX"},
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "unknown school",
			cmd:     Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "nope"},
			wantErr: ErrNotFound,
		},
		{
			name:    "broke team cannot nominate",
			mutate:  func(s *State) { s.Teams["teamA"].RemainingBudget = 0 },
			cmd:     Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"},
			wantErr: ErrBudgetExceeded,
		},
		{
			name: "full roster is skipped in nomination order",
			mutate: func(s *State) {
				for _, sl := range s.Slots["teamA"] {
					sl.SchoolID = "filler"
				}
			},
			cmd: Command{Type: CmdNominate, Actor: coach("teamB"), SchoolID: "schoolX"},
		},
		{
			name: "pending reconnection blocks nomination",
			cmd: Command{Type: CmdNominate,
				Actor:    Actor{UserID: "u", Role: models.RoleTeamCoach, TeamID: "teamA", ReconnectionPending: true},
				SchoolID: "schoolX"},
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "nomination while paused rejected",
			mutate:  func(s *State) { s.Auction.Status = models.StatusPaused },
			cmd:     Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"},
			wantErr: ErrInvalidState,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState(3, 100)
			if tc.mutate != nil {
				tc.mutate(s)
			}
			tc.cmd.Now = testNow
			events, err := Apply(s, tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if s.Round != nil {
					t.Fatalf("rejected command must not open a round")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !ContainsEvent(events, EvtSchoolNominated) {
				t.Fatalf("expected SchoolNominated, got %+v", events)
			}
			if s.Round == nil || s.Round.HighBid != 1 {
				t.Fatalf("nomination must open a round at $1, got %+v", s.Round)
			}
			if s.Auction.CurrentSchool != s.Round.SchoolID {
				t.Fatalf("auction must reference the nominee")
			}
		})
	}
}

func TestPlaceBid_CeilingAndOrdering(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(s *State)
		cmd     Command
		wantErr error
	}{
		{
			name: "bid above high bid and within ceiling accepted",
			cmd:  Command{Type: CmdPlaceBid, Actor: coach("teamB"), Amount: 10},
		},
		{
			name:    "bid must strictly exceed high bid",
			cmd:     Command{Type: CmdPlaceBid, Actor: coach("teamB"), Amount: 1},
			wantErr: ErrInvalidState,
		},
		{
			// $5 budget, 3 open slots: ceiling is 5-(3-1)=3.
			name: "ceiling reserves a dollar per remaining slot",
			mutate: func(s *State) {
				s.Teams["teamB"].RemainingBudget = 5
				s.Slots["teamB"] = append(s.Slots["teamB"],
					&models.RosterSlot{ID: "teamB-s2", TeamID: "teamB", Position: models.PositionFlex, Index: 2})
			},
			cmd:     Command{Type: CmdPlaceBid, Actor: coach("teamB"), Amount: 4},
			wantErr: ErrBudgetExceeded,
		},
		{
			name: "ceiling boundary bid accepted",
			mutate: func(s *State) {
				s.Teams["teamB"].RemainingBudget = 5
				s.Slots["teamB"] = append(s.Slots["teamB"],
					&models.RosterSlot{ID: "teamB-s2", TeamID: "teamB", Position: models.PositionFlex, Index: 2})
			},
			cmd: Command{Type: CmdPlaceBid, Actor: coach("teamB"), Amount: 3},
		},
		{
			name: "full roster cannot bid",
			mutate: func(s *State) {
				for _, sl := range s.Slots["teamC"] {
					sl.SchoolID = "filler"
				}
			},
			cmd:     Command{Type: CmdPlaceBid, Actor: coach("teamC"), Amount: 10},
			wantErr: ErrInvalidState,
		},
		{
			name:    "bid against wrong school rejected",
			cmd:     Command{Type: CmdPlaceBid, Actor: coach("teamB"), SchoolID: "schoolY", Amount: 10},
			wantErr: ErrInvalidState,
		},
		{
			name:    "auction master cannot bid",
			cmd:     Command{Type: CmdPlaceBid, Actor: master(), Amount: 10},
			wantErr: ErrNotAuthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestState(3, 100)
			mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
			if tc.mutate != nil {
				tc.mutate(s)
			}
			before := *s.Round
			tc.cmd.Now = testNow
			events, err := Apply(s, tc.cmd)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				if s.Round.HighBid != before.HighBid || s.Round.HighTeam != before.HighTeam {
					t.Fatalf("rejected bid must leave the round unchanged")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !ContainsEvent(events, EvtBidPlaced) {
				t.Fatalf("expected BidPlaced, got %+v", events)
			}
			if s.Round.HighTeam != tc.cmd.Actor.TeamID {
				t.Fatalf("high bidder not updated")
			}
		})
	}
}

func TestPlaceBid_ClearsPassSet(t *testing.T) {
	s := newTestState(3, 100)
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
	mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamB")})
	if !s.Round.Passed["teamB"] {
		t.Fatalf("teamB should be in the pass set")
	}

	mustApply(t, s, Command{Type: CmdPlaceBid, Actor: coach("teamC"), Amount: 5})
	if len(s.Round.Passed) != 0 {
		t.Fatalf("a new high bid must clear the pass set, got %v", s.Round.Passed)
	}
}

func TestPass_ResolvesWhenAllButHighBidderPass(t *testing.T) {
	// Full round: 3 teams at $100 with 2 open slots. A nominates X,
	// B bids $10, C and A pass, B wins at $10.
	s := newTestState(3, 100)
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
	mustApply(t, s, Command{Type: CmdPlaceBid, Actor: coach("teamB"), Amount: 10})

	events := mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamC")})
	if ContainsEvent(events, EvtSchoolWon) {
		t.Fatalf("round must not resolve while teamA has not passed")
	}

	events = mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamA")})
	if !ContainsEvent(events, EvtBiddingEnded) || !ContainsEvent(events, EvtSchoolWon) {
		t.Fatalf("expected BiddingEnded+SchoolWon, got %+v", events)
	}
	if !ContainsEvent(events, EvtSchoolAssigned) {
		t.Fatalf("winner had a matching open slot, expected auto-assignment")
	}

	if s.Round != nil {
		t.Fatalf("state must return to idle")
	}
	sc := s.Schools["schoolX"]
	if sc.IsAvailable || sc.WinnerTeamID != "teamB" || sc.FinalPrice != 10 {
		t.Fatalf("school not settled correctly: %+v", sc)
	}
	b := s.Teams["teamB"]
	if b.RemainingBudget != 90 {
		t.Fatalf("want remaining budget 90, got %d", b.RemainingBudget)
	}
	if got := s.OpenSlotCount("teamB"); got != 1 {
		t.Fatalf("want 1 open slot, got %d", got)
	}
	if got := s.maxBid("teamB"); got != 90 {
		t.Fatalf("next ceiling should be 90-(1-1)=90, got %d", got)
	}
	// Nomination advances to the next team with an open slot.
	next, ok := s.NominatingTeam()
	if !ok || next != "teamB" {
		t.Fatalf("want teamB to nominate next, got %q", next)
	}
}

func TestPass_HighBidderCannotPass(t *testing.T) {
	s := newTestState(3, 100)
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
	_, err := Apply(s, Command{Type: CmdPass, Actor: coach("teamA"), Now: testNow})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestPass_RepeatPassIsNoOp(t *testing.T) {
	s := newTestState(3, 100)
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
	mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamB")})
	events := mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamB")})
	if len(events) != 0 {
		t.Fatalf("repeat pass must not rebroadcast, got %+v", events)
	}
}

func TestEndCurrentBid_MasterOnlyOverride(t *testing.T) {
	s := newTestState(3, 100)
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})

	if _, err := Apply(s, Command{Type: CmdEndBid, Actor: coach("teamB"), Now: testNow}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("coach override should be rejected, got %v", err)
	}

	events := mustApply(t, s, Command{Type: CmdEndBid, Actor: master()})
	if !ContainsEvent(events, EvtSchoolWon) {
		t.Fatalf("master override must resolve the round, got %+v", events)
	}
	if s.Schools["schoolX"].WinnerTeamID != "teamA" {
		t.Fatalf("nominator was high bidder and should win at $1")
	}
}

func TestResolution_AdvancesPastTheActualNominator(t *testing.T) {
	s := newTestState(3, 100)
	for _, sl := range s.Slots["teamA"] {
		sl.SchoolID = "filler"
	}

	// teamA is full, so teamB is on the clock even though the cursor still
	// sits at teamA's position. After teamB's round resolves the next
	// nominator must be teamC, not teamB again.
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamB"), SchoolID: "schoolX"})
	mustApply(t, s, Command{Type: CmdEndBid, Actor: master()})

	next, ok := s.NominatingTeam()
	if !ok || next != "teamC" {
		t.Fatalf("teamB just nominated, want teamC next, got %q", next)
	}
}

func TestResolution_AutoCompletesWhenRostersFull(t *testing.T) {
	s := newTestState(2, 100)
	// Leave each team one open slot.
	s.Slots["teamA"][1].SchoolID = "filler"
	s.Slots["teamB"][1].SchoolID = "filler"

	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"})
	mustApply(t, s, Command{Type: CmdPass, Actor: coach("teamB")})
	// teamA won its last slot; teamB nominates and wins its own last slot.
	mustApply(t, s, Command{Type: CmdNominate, Actor: coach("teamB"), SchoolID: "schoolY"})
	events := mustApply(t, s, Command{Type: CmdEndBid, Actor: master()})

	if !ContainsEvent(events, EvtStatusChanged) {
		t.Fatalf("expected automatic completion, got %+v", events)
	}
	if s.Auction.Status != models.StatusComplete {
		t.Fatalf("want complete, got %s", s.Auction.Status)
	}
	if s.Auction.CompletedDate == nil {
		t.Fatalf("completion must stamp CompletedDate")
	}
	if s.Teams["teamA"].IsActive || s.Teams["teamB"].IsActive {
		t.Fatalf("full teams must be inactive")
	}
}

func TestApply_ArchivedIsAbsorbing(t *testing.T) {
	s := newTestState(2, 100)
	s.Auction.Status = models.StatusArchived
	for _, cmd := range []Command{
		{Type: CmdNominate, Actor: coach("teamA"), SchoolID: "schoolX"},
		{Type: CmdPass, Actor: coach("teamA")},
		{Type: CmdSetStatus, Actor: master(), Status: models.StatusInProgress},
	} {
		cmd.Now = testNow
		if _, err := Apply(s, cmd); err == nil {
			t.Fatalf("archived auction accepted %s", cmd.Type)
		}
	}
}
