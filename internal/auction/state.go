package auction

import (
	"maps"
	"slices"
	"time"

	"github.com/draftroom/auction-backend/internal/models"
)

// Round is the ephemeral bid round. It exists only while a school is under
// active nomination and is never independently persisted.
type Round struct {
	SchoolID  string          `json:"school_id"`
	HighBid   int             `json:"high_bid"`
	HighTeam  string          `json:"high_team"`
	Passed    map[string]bool `json:"passed"`
	StartedAt time.Time       `json:"started_at"`
}

// State is the authoritative per-auction state. It is exclusively owned by
// one room actor; nothing outside that goroutine mutates it.
type State struct {
	Auction models.Auction
	Teams   map[string]*models.Team
	Schools map[string]*models.AuctionSchool
	Slots   map[string][]*models.RosterSlot // team id -> slots ordered by Index
	Order   []string                        // team ids by NominationOrder rank
	Cursor  int                             // index in Order of the nominator; the active nominator while a round runs
	Round   *Round                          // nil while Idle
}

// NewState assembles a State from loaded entities. Slots must already be
// grouped per team; Order is derived from NominationOrder.
func NewState(a models.Auction, teams []*models.Team, schools []*models.AuctionSchool, slots []*models.RosterSlot) *State {
	s := &State{
		Auction: a,
		Teams:   make(map[string]*models.Team, len(teams)),
		Schools: make(map[string]*models.AuctionSchool, len(schools)),
		Slots:   make(map[string][]*models.RosterSlot),
	}
	for _, t := range teams {
		s.Teams[t.ID] = t
		s.Order = append(s.Order, t.ID)
	}
	slices.SortFunc(s.Order, func(a, b string) int {
		return s.Teams[a].NominationOrder - s.Teams[b].NominationOrder
	})
	for _, sc := range schools {
		s.Schools[sc.ID] = sc
	}
	for _, sl := range slots {
		s.Slots[sl.TeamID] = append(s.Slots[sl.TeamID], sl)
	}
	for _, teamSlots := range s.Slots {
		slices.SortFunc(teamSlots, func(a, b *models.RosterSlot) int { return a.Index - b.Index })
	}
	return s
}

// Clone deep-copies the state so a command can be applied and persisted
// before the live state is swapped. A failed persist throws the clone away.
func (s *State) Clone() *State {
	c := &State{
		Auction: s.Auction,
		Teams:   make(map[string]*models.Team, len(s.Teams)),
		Schools: make(map[string]*models.AuctionSchool, len(s.Schools)),
		Slots:   make(map[string][]*models.RosterSlot, len(s.Slots)),
		Order:   slices.Clone(s.Order),
		Cursor:  s.Cursor,
	}
	for id, t := range s.Teams {
		tc := *t
		c.Teams[id] = &tc
	}
	for id, sc := range s.Schools {
		scc := *sc
		c.Schools[id] = &scc
	}
	for id, teamSlots := range s.Slots {
		cs := make([]*models.RosterSlot, len(teamSlots))
		for i, sl := range teamSlots {
			slc := *sl
			cs[i] = &slc
		}
		c.Slots[id] = cs
	}
	if s.Round != nil {
		r := *s.Round
		r.Passed = maps.Clone(s.Round.Passed)
		c.Round = &r
	}
	return c
}

// OpenSlotCount returns the number of unfilled roster slots for a team.
func (s *State) OpenSlotCount(teamID string) int {
	n := 0
	for _, sl := range s.Slots[teamID] {
		if !sl.Filled() {
			n++
		}
	}
	return n
}

// NominatingTeam returns the id of the team whose turn it is to nominate:
// the first team at or after Cursor with an open roster slot. ok is false
// when no team has an open slot left.
func (s *State) NominatingTeam() (string, bool) {
	if len(s.Order) == 0 {
		return "", false
	}
	for i := 0; i < len(s.Order); i++ {
		id := s.Order[(s.Cursor+i)%len(s.Order)]
		if s.OpenSlotCount(id) > 0 {
			return id, true
		}
	}
	return "", false
}

// advanceCursor moves the nomination cursor past the team that just
// nominated, skipping teams with full rosters. Returns false when every
// roster is full.
func (s *State) advanceCursor() bool {
	if len(s.Order) == 0 {
		return false
	}
	start := s.Cursor
	for i := 1; i <= len(s.Order); i++ {
		idx := (start + i) % len(s.Order)
		if s.OpenSlotCount(s.Order[idx]) > 0 {
			s.Cursor = idx
			return true
		}
	}
	return false
}

// eligibleTeams returns the ids of teams still allowed to bid or pass:
// those with at least one open roster slot.
func (s *State) eligibleTeams() []string {
	var out []string
	for _, id := range s.Order {
		if s.OpenSlotCount(id) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// maxBid is the budget ceiling for a team: it must keep at least $1 for
// every remaining open slot after this win.
func (s *State) maxBid(teamID string) int {
	t := s.Teams[teamID]
	if t == nil {
		return 0
	}
	return t.RemainingBudget - (s.OpenSlotCount(teamID) - 1)
}
