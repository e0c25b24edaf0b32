package auction

import (
	"time"

	"github.com/draftroom/auction-backend/internal/models"
)

type EventType string

const (
	EvtUserJoined           EventType = "UserJoined"
	EvtUserConnected        EventType = "UserConnected"
	EvtUserDisconnected     EventType = "UserDisconnected"
	EvtSchoolNominated      EventType = "SchoolNominated"
	EvtBidPlaced            EventType = "BidPlaced"
	EvtPlayerPassed         EventType = "PlayerPassed"
	EvtBiddingEnded         EventType = "BiddingEnded"
	EvtSchoolWon            EventType = "SchoolWon"
	EvtSchoolAssigned       EventType = "SchoolAssigned"
	EvtStatusChanged        EventType = "StatusChanged"
	EvtReconnectionApproved EventType = "ReconnectionApproved"

	// Admin-topic notifications.
	EvtAdminReconnectionRequest  EventType = "AdminNotifyReconnectionRequest"
	EvtAdminReconnectionApproved EventType = "AdminNotifyReconnectionApproved"
	EvtAdminConnection           EventType = "AdminNotifyConnection"
	EvtAdminDisconnection        EventType = "AdminNotifyDisconnection"
)

// Scope says which topic(s) an event belongs on. The room actor routes on it;
// the engine never talks to the transport directly.
type Scope int

const (
	ScopeAuction Scope = iota // auction-{id}: every participant
	ScopeAdmin                // admin-{id}: auction-master connections
	ScopeWaiting              // waiting-{id}: pre-auction lobby
	ScopeDirect               // exactly one connection (UserID selects it)
)

// Event is a flat record of something that happened; unused fields stay zero.
type Event struct {
	Type     EventType     `json:"type"`
	Scope    Scope         `json:"-"`
	UserID   string        `json:"user_id,omitempty"`
	UserName string        `json:"user_name,omitempty"`
	TeamID   string        `json:"team_id,omitempty"`
	SchoolID string        `json:"school_id,omitempty"`
	SlotID   string        `json:"slot_id,omitempty"`
	Amount   int           `json:"amount,omitempty"`
	Status   models.Status `json:"status,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	At       time.Time     `json:"at,omitempty"`
}

// ContainsEvent reports whether events holds at least one event of the given
// type. Test helper shared across packages.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
