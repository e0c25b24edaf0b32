package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the coarse auction lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusComplete   Status = "complete"
	StatusArchived   Status = "archived"
)

// Role is a participant's role within one auction. A user holds exactly one
// active role; assigning a new role discards the previous one.
type Role string

const (
	RoleAuctionMaster Role = "auction_master"
	RoleTeamCoach     Role = "team_coach"
	RoleProxyCoach    Role = "proxy_coach"
	RoleViewer        Role = "viewer"
)

// ParseRole maps a wire/storage string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAuctionMaster, RoleTeamCoach, RoleProxyCoach, RoleViewer:
		return Role(s), true
	default:
		return "", false
	}
}

// Auction is the root entity. JoinCode is the short public entry code;
// RecoveryCode is the long private code the auction master uses to regain
// control after losing their session.
type Auction struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	JoinCode      string     `json:"join_code"`
	RecoveryCode  string     `json:"-"`
	Status        Status     `json:"status"`
	CurrentSchool string     `json:"current_school,omitempty"`
	CreatedDate   time.Time  `json:"created_date"`
	StartedDate   *time.Time `json:"started_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	ModifiedDate  time.Time  `json:"modified_date"`
}

// User is scoped to exactly one auction. Credential is the opaque session
// token presented on every command; ConnID is the live connection handle and
// is empty while disconnected.
type User struct {
	ID                    string    `json:"id"`
	AuctionID             string    `json:"auction_id"`
	DisplayName           string    `json:"display_name"`
	Credential            string    `json:"-"`
	Role                  Role      `json:"role"`
	TeamID                string    `json:"team_id,omitempty"`
	IsConnected           bool      `json:"is_connected"`
	ConnID                string    `json:"-"`
	LastActiveDate        time.Time `json:"last_active_date"`
	IsReconnectionPending bool      `json:"is_reconnection_pending"`
	IsReady               bool      `json:"is_ready"`
}

// Team bids in one auction. NominationOrder ranks teams in the round-robin
// nomination sequence; IsActive drops to false once the roster is full.
type Team struct {
	ID              string `json:"id"`
	AuctionID       string `json:"auction_id"`
	Name            string `json:"name"`
	Budget          int    `json:"budget"`
	RemainingBudget int    `json:"remaining_budget"`
	NominationOrder int    `json:"nomination_order"`
	IsActive        bool   `json:"is_active"`
}

// AuctionSchool links a shared school to one auction with auction-specific
// stats and bidding state. WinnerTeamID/FinalPrice are set once the school
// has been won.
type AuctionSchool struct {
	ID              string          `json:"id"`
	AuctionID       string          `json:"auction_id"`
	SchoolID        string          `json:"school_id"`
	Name            string          `json:"name"`
	Conference      string          `json:"conference"`
	Position        string          `json:"position"`
	ProjectedPoints decimal.Decimal `json:"projected_points" gorm:"type:numeric"`
	ReplacementVal  decimal.Decimal `json:"replacement_value" gorm:"type:numeric"`
	IsAvailable     bool            `json:"is_available"`
	WinnerTeamID    string          `json:"winner_team_id,omitempty"`
	FinalPrice      int             `json:"final_price,omitempty"`
}

// PositionFlex marks a roster slot that accepts any school regardless of
// position tag.
const PositionFlex = "flex"

// RosterSlot holds at most one won school. Index is the slot's creation
// order within its team and breaks auto-assignment ties.
type RosterSlot struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	Position string `json:"position"`
	Index    int    `json:"index"`
	SchoolID string `json:"school_id,omitempty"`
}

// Filled reports whether a school has been assigned to the slot.
func (s RosterSlot) Filled() bool { return s.SchoolID != "" }

// Admits reports whether the slot's position can legally hold a school with
// the given position tag.
func (s RosterSlot) Admits(position string) bool {
	return s.Position == PositionFlex || s.Position == position
}
