package session

import (
	"fmt"
	"time"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/models"
)

// Reconnection arbitration: NotPending -> Pending -> Approved. A pending
// request has no engine-imposed timeout; it stays pending until the master
// approves it or the auction leaves play. The admin event carries the
// requester's last-active timestamp so the master can judge staleness.

// RequestReconnection flags the credential's user as pending and returns the
// admin-topic notification.
func (s *Store) RequestReconnection(credential string, now time.Time) (models.User, []auction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCred[credential]
	if !ok || credential == "" {
		return models.User{}, nil, fmt.Errorf("session: %w", auction.ErrInvalidSession)
	}
	u := s.users[id]
	if u.IsReconnectionPending {
		return *u, nil, nil // already pending, nothing new to announce
	}
	lastActive := u.LastActiveDate
	u.IsReconnectionPending = true

	events := []auction.Event{{
		Type:   auction.EvtAdminReconnectionRequest,
		Scope:  auction.ScopeAdmin,
		UserID: u.ID, UserName: u.DisplayName,
		Reason: fmt.Sprintf("%s requests reconnection, last active %s",
			u.DisplayName, lastActive.Format(time.RFC3339)),
		At: now,
	}}
	return *u, events, nil
}

// ApproveReconnection clears the pending flag. Valid only while the target
// is pending; role gating (auction master only) happens at the command
// checkpoint before this is called. Returns a direct event for the
// reconnecting connection plus the admin-topic confirmation.
func (s *Store) ApproveReconnection(userID, approverID string, now time.Time) (models.User, []auction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, nil, fmt.Errorf("session: user %q: %w", userID, auction.ErrNotFound)
	}
	if !u.IsReconnectionPending {
		return models.User{}, nil, fmt.Errorf("session: %s has no pending reconnection: %w",
			u.DisplayName, auction.ErrInvalidState)
	}
	u.IsReconnectionPending = false
	u.LastActiveDate = now

	events := []auction.Event{
		{Type: auction.EvtReconnectionApproved, Scope: auction.ScopeDirect,
			UserID: u.ID, UserName: u.DisplayName, At: now},
		{Type: auction.EvtAdminReconnectionApproved, Scope: auction.ScopeAdmin,
			UserID: u.ID, UserName: u.DisplayName,
			Reason: fmt.Sprintf("approved by %s", approverID), At: now},
	}
	return *u, events, nil
}

// ClearPendingForAuction drops every pending reconnection in an auction,
// used when the auction ends with requests still outstanding.
func (s *Store) ClearPendingForAuction(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.AuctionID == auctionID {
			u.IsReconnectionPending = false
		}
	}
}
