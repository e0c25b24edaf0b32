package session

import (
	"errors"
	"testing"
	"time"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/models"
)

var now = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func testUser() models.User {
	return models.User{
		ID: "u1", AuctionID: "a1", DisplayName: "Sam",
		Credential: "cred-1", Role: models.RoleTeamCoach, TeamID: "t1",
	}
}

func TestResolve(t *testing.T) {
	s := NewStore()
	s.Register(testUser())

	u, err := s.Resolve("cred-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("wrong user: %+v", u)
	}

	if _, err := s.Resolve("bogus"); !errors.Is(err, auction.ErrInvalidSession) {
		t.Fatalf("want ErrInvalidSession, got %v", err)
	}
	if _, err := s.Resolve(""); !errors.Is(err, auction.ErrInvalidSession) {
		t.Fatalf("empty credential must fail, got %v", err)
	}
}

func TestConnectDisconnect(t *testing.T) {
	s := NewStore()
	s.Register(testUser())

	u, events, err := s.Connect("cred-1", "conn-1", now)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !u.IsConnected || u.ConnID != "conn-1" || !u.LastActiveDate.Equal(now) {
		t.Fatalf("connect did not mark liveness: %+v", u)
	}
	if !auction.ContainsEvent(events, auction.EvtUserConnected) ||
		!auction.ContainsEvent(events, auction.EvtAdminConnection) {
		t.Fatalf("want auction + admin events, got %+v", events)
	}

	later := now.Add(time.Minute)
	u, events, ok := s.Disconnect("conn-1", "transport closed", later)
	if !ok {
		t.Fatalf("disconnect of known conn must succeed")
	}
	if u.IsConnected || u.ConnID != "" {
		t.Fatalf("disconnect did not clear handle: %+v", u)
	}
	if !auction.ContainsEvent(events, auction.EvtUserDisconnected) ||
		!auction.ContainsEvent(events, auction.EvtAdminDisconnection) {
		t.Fatalf("want auction + admin events, got %+v", events)
	}

	if _, _, ok := s.Disconnect("conn-1", "", later); ok {
		t.Fatalf("second disconnect must be a no-op")
	}
}

func TestConnect_ReplacesStaleConnection(t *testing.T) {
	s := NewStore()
	s.Register(testUser())
	if _, _, err := s.Connect("cred-1", "conn-old", now); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Connect("cred-1", "conn-new", now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	// The stale handle must no longer resolve to the user.
	if _, _, ok := s.Disconnect("conn-old", "", now.Add(time.Minute)); ok {
		t.Fatalf("stale connection still registered")
	}
	u, _ := s.Get("u1")
	if u.ConnID != "conn-new" {
		t.Fatalf("want conn-new, got %q", u.ConnID)
	}
}

func TestReconnectionFlow(t *testing.T) {
	s := NewStore()
	u := testUser()
	u.LastActiveDate = now.Add(-10 * time.Minute)
	s.Register(u)

	got, events, err := s.RequestReconnection("cred-1", now)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !got.IsReconnectionPending {
		t.Fatalf("pending flag not set")
	}
	if !auction.ContainsEvent(events, auction.EvtAdminReconnectionRequest) {
		t.Fatalf("admin must be notified, got %+v", events)
	}

	// Repeat request stays pending without re-announcing.
	_, events, err = s.RequestReconnection("cred-1", now)
	if err != nil || len(events) != 0 {
		t.Fatalf("repeat request: events=%v err=%v", events, err)
	}

	got, events, err = s.ApproveReconnection("u1", "master-1", now)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.IsReconnectionPending {
		t.Fatalf("approval must clear the pending flag")
	}
	var direct, admin bool
	for _, e := range events {
		if e.Type == auction.EvtReconnectionApproved && e.Scope == auction.ScopeDirect {
			direct = true
		}
		if e.Type == auction.EvtAdminReconnectionApproved && e.Scope == auction.ScopeAdmin {
			admin = true
		}
	}
	if !direct || !admin {
		t.Fatalf("want direct + admin approval events, got %+v", events)
	}

	// Approving again fails: target is no longer pending.
	if _, _, err := s.ApproveReconnection("u1", "master-1", now); !errors.Is(err, auction.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestApproveReconnection_UnknownUser(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ApproveReconnection("ghost", "master-1", now); !errors.Is(err, auction.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClearPendingForAuction(t *testing.T) {
	s := NewStore()
	u := testUser()
	s.Register(u)
	other := testUser()
	other.ID, other.Credential, other.AuctionID = "u2", "cred-2", "a2"
	s.Register(other)

	_, _, _ = s.RequestReconnection("cred-1", now)
	_, _, _ = s.RequestReconnection("cred-2", now)

	s.ClearPendingForAuction("a1")
	got, _ := s.Get("u1")
	if got.IsReconnectionPending {
		t.Fatalf("a1 pending flag should be cleared")
	}
	got, _ = s.Get("u2")
	if !got.IsReconnectionPending {
		t.Fatalf("a2 pending flag must survive")
	}
}

func TestNameTaken_CaseInsensitive(t *testing.T) {
	s := NewStore()
	s.Register(testUser())
	if !s.NameTaken("a1", "sam") {
		t.Fatalf("display names are unique case-insensitively")
	}
	if s.NameTaken("a2", "Sam") {
		t.Fatalf("uniqueness is scoped per auction")
	}
}
