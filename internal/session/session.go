// Package session tracks connected participants: their auction membership,
// role, liveness, and pending reconnection requests. The store is an
// explicitly owned instance handed to whoever needs it; there is no ambient
// registry. Lifecycle transitions return the events to publish instead of
// publishing inline, so the engine stays testable without a transport.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/models"
)

// Store resolves opaque session credentials to user records and tracks live
// connections. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*models.User // user id -> user
	byCred map[string]string       // credential -> user id
	byConn map[string]string       // connection id -> user id
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]*models.User),
		byCred: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register adds or refreshes a user record, typically when an auction's
// users are loaded or a new participant is created.
func (s *Store) Register(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(u)
}

func (s *Store) put(u models.User) {
	uc := u
	s.users[u.ID] = &uc
	s.byCred[u.Credential] = u.ID
	if u.ConnID != "" {
		s.byConn[u.ConnID] = u.ID
	}
}

// Resolve maps a session credential to its user record.
func (s *Store) Resolve(credential string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCred[credential]
	if !ok || credential == "" {
		return models.User{}, fmt.Errorf("session: %w", auction.ErrInvalidSession)
	}
	return *s.users[id], nil
}

// Get returns a user by id.
func (s *Store) Get(userID string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// UsersForAuction returns copies of every user in one auction.
func (s *Store) UsersForAuction(auctionID string) []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		if u.AuctionID == auctionID {
			out = append(out, *u)
		}
	}
	return out
}

// NameTaken reports whether a display name is already used in an auction,
// case-insensitively.
func (s *Store) NameTaken(auctionID, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.AuctionID == auctionID && strings.EqualFold(u.DisplayName, name) {
			return true
		}
	}
	return false
}

// Connect marks the credential's user as live on the given connection and
// stamps LastActiveDate. Returns the updated user and the events to publish:
// UserConnected on the auction topic and a master-readable admin note.
func (s *Store) Connect(credential, connID string, now time.Time) (models.User, []auction.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCred[credential]
	if !ok || credential == "" {
		return models.User{}, nil, fmt.Errorf("session: %w", auction.ErrInvalidSession)
	}
	u := s.users[id]
	if u.ConnID != "" && u.ConnID != connID {
		delete(s.byConn, u.ConnID)
	}
	u.IsConnected = true
	u.ConnID = connID
	u.LastActiveDate = now
	s.byConn[connID] = id

	events := []auction.Event{
		{Type: auction.EvtUserConnected, Scope: auction.ScopeAuction,
			UserID: u.ID, UserName: u.DisplayName, At: now},
		{Type: auction.EvtAdminConnection, Scope: auction.ScopeAdmin,
			UserID: u.ID, UserName: u.DisplayName,
			Reason: fmt.Sprintf("%s connected", u.DisplayName), At: now},
	}
	return *u, events, nil
}

// Disconnect clears the connection handle on transport-level loss. The user
// record survives for reconnection. ok is false when the connection was
// never registered (nothing to announce).
func (s *Store) Disconnect(connID, reason string, now time.Time) (models.User, []auction.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byConn[connID]
	if !ok {
		return models.User{}, nil, false
	}
	u := s.users[id]
	delete(s.byConn, connID)
	if u.ConnID == connID {
		u.IsConnected = false
		u.ConnID = ""
		u.LastActiveDate = now
	}
	if reason == "" {
		reason = fmt.Sprintf("%s disconnected", u.DisplayName)
	}

	events := []auction.Event{
		{Type: auction.EvtUserDisconnected, Scope: auction.ScopeAuction,
			UserID: u.ID, UserName: u.DisplayName, At: now},
		{Type: auction.EvtAdminDisconnection, Scope: auction.ScopeAdmin,
			UserID: u.ID, UserName: u.DisplayName, Reason: reason, At: now},
	}
	return *u, events, true
}

// Touch refreshes LastActiveDate for the user behind a connection.
func (s *Store) Touch(connID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byConn[connID]; ok {
		s.users[id].LastActiveDate = now
	}
}
