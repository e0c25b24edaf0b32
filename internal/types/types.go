package types

import (
	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/room"
)

// ClientMessage is one inbound websocket frame. Type selects the command;
// the remaining fields are read as that command needs them.
type ClientMessage struct {
	Type     string `json:"type"`
	SchoolID string `json:"school_id,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
	SlotID   string `json:"slot_id,omitempty"`
	Status   string `json:"status,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// ServerMessage is one outbound frame: a live event, a full-state resync,
// or an error addressed to this connection only.
type ServerMessage struct {
	Type     string         `json:"type"` // "Event" | "StateSnapshot" | "Error"
	Event    *auction.Event `json:"event,omitempty"`
	Snapshot *room.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}
