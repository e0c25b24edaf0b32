package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/draftroom/auction-backend/internal/models"
)

func TestTransitionStatus_Table(t *testing.T) {
	cases := []struct {
		from, to models.Status
		ok       bool
	}{
		{models.StatusDraft, models.StatusInProgress, true},
		{models.StatusDraft, models.StatusArchived, true},
		{models.StatusDraft, models.StatusComplete, false},
		{models.StatusDraft, models.StatusPaused, false},
		{models.StatusInProgress, models.StatusPaused, true},
		{models.StatusInProgress, models.StatusComplete, true},
		{models.StatusInProgress, models.StatusArchived, true},
		{models.StatusInProgress, models.StatusDraft, false},
		{models.StatusPaused, models.StatusInProgress, true},
		{models.StatusPaused, models.StatusComplete, true},
		{models.StatusPaused, models.StatusArchived, true},
		{models.StatusPaused, models.StatusDraft, false},
		{models.StatusComplete, models.StatusArchived, true},
		{models.StatusComplete, models.StatusInProgress, false},
		{models.StatusArchived, models.StatusDraft, false},
		{models.StatusArchived, models.StatusInProgress, false},
		{models.StatusArchived, models.StatusComplete, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			s := newTestState(2, 100)
			s.Auction.Status = tc.from
			_, err := Apply(s, Command{Type: CmdSetStatus, Actor: master(), Status: tc.to, Now: testNow})
			if tc.ok && err != nil {
				t.Fatalf("want ok, got %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("want ErrInvalidTransition, got %v", err)
				}
				if s.Auction.Status != tc.from {
					t.Fatalf("failed transition must not change status")
				}
			}
		})
	}
}

func TestTransitionStatus_SelfIsNoOp(t *testing.T) {
	s := newTestState(2, 100)
	before := s.Auction
	events, err := Apply(s, Command{Type: CmdSetStatus, Actor: master(), Status: models.StatusInProgress, Now: testNow})
	if err != nil {
		t.Fatalf("self transition must succeed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("self transition must not broadcast, got %+v", events)
	}
	if s.Auction != before {
		t.Fatalf("self transition must not mutate the auction")
	}
}

func TestTransitionStatus_MasterOnly(t *testing.T) {
	s := newTestState(2, 100)
	s.Auction.Status = models.StatusDraft
	for _, actor := range []Actor{
		coach("teamA"),
		{UserID: "p", Role: models.RoleProxyCoach, TeamID: "teamA"},
		{UserID: "v", Role: models.RoleViewer},
	} {
		_, err := Apply(s, Command{Type: CmdSetStatus, Actor: actor, Status: models.StatusInProgress, Now: testNow})
		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("role %s: want ErrNotAuthorized, got %v", actor.Role, err)
		}
	}
}

func TestTransitionStatus_StampsDatesOnce(t *testing.T) {
	s := newTestState(2, 100)
	s.Auction.Status = models.StatusDraft

	mustApply(t, s, Command{Type: CmdSetStatus, Actor: master(), Status: models.StatusInProgress})
	if s.Auction.StartedDate == nil {
		t.Fatalf("first entry to in_progress must stamp StartedDate")
	}
	started := *s.Auction.StartedDate

	later := testNow.Add(time.Hour)
	mustApply(t, s, Command{Type: CmdSetStatus, Actor: master(), Status: models.StatusPaused, Now: later})
	mustApply(t, s, Command{Type: CmdSetStatus, Actor: master(), Status: models.StatusInProgress, Now: later})
	if !s.Auction.StartedDate.Equal(started) {
		t.Fatalf("StartedDate must not be re-stamped on resume")
	}

	mustApply(t, s, Command{Type: CmdSetStatus, Actor: master(), Status: models.StatusComplete, Now: later})
	if s.Auction.CompletedDate == nil {
		t.Fatalf("first entry to complete must stamp CompletedDate")
	}
	if !s.Auction.ModifiedDate.Equal(later) {
		t.Fatalf("ModifiedDate must refresh on transition")
	}
}
