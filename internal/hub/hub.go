// Package hub owns the registry of live rooms, one per auction. It is a
// single-goroutine actor: room creation and lookup are serialized through
// its inbox, so two connections racing to open the same auction always get
// the same room.
package hub

import (
	"context"
	"fmt"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/models"
	"github.com/draftroom/auction-backend/internal/room"
	"github.com/draftroom/auction-backend/internal/session"
	"github.com/draftroom/auction-backend/internal/store"
	"github.com/draftroom/auction-backend/internal/topic"
	log "github.com/sirupsen/logrus"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom resolves a public join code to a live room, loading the
// auction's state from the store when no room exists yet.
type EnsureRoom struct {
	JoinCode string
	Reply    chan RoomResult
}

// GetRoom looks up a live room by auction id; Reply receives nil when the
// auction has no room running.
type GetRoom struct {
	AuctionID string
	Reply     chan *room.Room
}

type RemoveRoom struct{ AuctionID string }

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type RoomResult struct {
	Room *room.Room
	Err  error
}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*room.Room // auction id -> room
	byCode   map[string]string     // join code -> auction id
	sessions *session.Store
	router   *topic.Router
	db       store.Store
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, sessions *session.Store, router *topic.Router, db store.Store) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*room.Room),
		byCode:   make(map[string]string),
		sessions: sessions,
		router:   router,
		db:       db,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if id, ok := h.byCode[msg.JoinCode]; ok {
					if rm := h.rooms[id]; rm != nil {
						msg.Reply <- RoomResult{Room: rm}
						break
					}
				}
				rm, err := h.openRoom(msg.JoinCode)
				if err != nil {
					msg.Reply <- RoomResult{Err: err}
					break
				}
				h.rooms[rm.AuctionID()] = rm
				h.byCode[msg.JoinCode] = rm.AuctionID()
				msg.Reply <- RoomResult{Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.AuctionID] // may be nil

			case RemoveRoom:
				if rm := h.rooms[msg.AuctionID]; rm != nil {
					rm.Inbox() <- room.Shutdown{}
				}
				delete(h.rooms, msg.AuctionID)

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				clear(h.byCode)
				h.cancel()
			}
		}
	}
}

// openRoom loads everything an auction needs from the store and starts its
// actor. Users are registered with the session store so their credentials
// resolve; replacement values are recomputed from the loaded rosters.
func (h *Hub) openRoom(joinCode string) (*room.Room, error) {
	a, err := h.db.FindAuctionByJoinCode(h.ctx, joinCode)
	if err != nil {
		return nil, fmt.Errorf("auction for code %q: %w", joinCode, auction.ErrNotFound)
	}
	teams, err := h.db.LoadTeamsForAuction(h.ctx, a.ID)
	if err != nil {
		return nil, err
	}
	schools, err := h.db.LoadSchoolsForAuction(h.ctx, a.ID)
	if err != nil {
		return nil, err
	}
	slots, err := h.db.LoadSlotsForAuction(h.ctx, a.ID)
	if err != nil {
		return nil, err
	}
	users, err := h.db.LoadUsersForAuction(h.ctx, a.ID)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		h.sessions.Register(*u)
	}

	auction.ComputeReplacementValues(schools, starterCounts(slots))

	st := auction.NewState(a, teams, schools, slots)
	log.WithFields(log.Fields{"auction": a.ID, "name": a.Name}).Info("room opened")
	return room.New(h.ctx, st, h.sessions, h.router, h.db), nil
}

// starterCounts tallies the dedicated (non-flex) slots per position across
// all teams; that is the starter pool replacement value is measured against.
func starterCounts(slots []*models.RosterSlot) map[string]int {
	counts := make(map[string]int)
	for _, sl := range slots {
		if sl.Position != models.PositionFlex {
			counts[sl.Position]++
		}
	}
	return counts
}
