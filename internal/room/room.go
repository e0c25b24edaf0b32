// Package room runs one actor goroutine per live auction. Every
// state-mutating command for an auction flows through its room inbox, which
// serializes validation, mutation, persistence, and event emission; commands
// on different auctions proceed in parallel. Validation errors go back on
// the command's reply channel to the invoking connection only and are never
// broadcast.
package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/models"
	"github.com/draftroom/auction-backend/internal/session"
	"github.com/draftroom/auction-backend/internal/store"
	"github.com/draftroom/auction-backend/internal/topic"
	log "github.com/sirupsen/logrus"
)

// ErrPersist marks a mutation that validated but failed to commit. Nothing
// changed and no event was published; the caller may retry.
var ErrPersist = errors.New("state not persisted, retry")

type Msg interface{ isRoomMsg() }

type JoinKind int

const (
	JoinAuction JoinKind = iota // regular participant entry
	JoinWaiting                 // pre-auction lobby
	JoinAdmin                   // auction-master console
)

// Join connects a session to this auction's topics and returns a full-state
// snapshot for resync.
type Join struct {
	Credential string
	ConnID     string
	Outbox     chan auction.Event
	Kind       JoinKind
	Reply      chan JoinResult
}

type JoinResult struct {
	User     models.User
	Snapshot Snapshot
	Err      error
}

// Command is one state-machine command from a connection.
type Command struct {
	Credential string
	Type       auction.CommandType
	SchoolID   string
	Amount     int
	TeamID     string
	SlotID     string
	Status     models.Status
	Reply      chan error
}

type RequestReconnection struct {
	Credential string
	Reply      chan error
}

type ApproveReconnection struct {
	Credential string // the approver's session
	UserID     string // the pending user
	Reply      chan error
}

// AddUser announces a participant created through the setup surface.
type AddUser struct {
	User  models.User
	Reply chan error
}

type Disconnect struct {
	ConnID string
	Reason string
}

type GetView struct{ Reply chan Snapshot }

type Shutdown struct{}

func (Join) isRoomMsg()                {}
func (Command) isRoomMsg()             {}
func (RequestReconnection) isRoomMsg() {}
func (ApproveReconnection) isRoomMsg() {}
func (AddUser) isRoomMsg()             {}
func (Disconnect) isRoomMsg()          {}
func (GetView) isRoomMsg()             {}
func (Shutdown) isRoomMsg()            {}

// Snapshot is the authoritative view sent on every (re)join; missed
// best-effort deliveries are reconciled through it rather than retried.
type Snapshot struct {
	Auction        models.Auction         `json:"auction"`
	Teams          []models.Team          `json:"teams"`
	Schools        []models.AuctionSchool `json:"schools"`
	Slots          []models.RosterSlot    `json:"slots"`
	Users          []models.User          `json:"users"`
	Round          *auction.Round         `json:"round,omitempty"`
	NominatingTeam string                 `json:"nominating_team,omitempty"`
}

type Room struct {
	inbox    chan Msg
	state    *auction.State
	sessions *session.Store
	router   *topic.Router
	db       store.Store
	outboxes map[string]chan auction.Event // conn id -> outbox; room owns the close
	log      *log.Entry
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, state *auction.State, sessions *session.Store, router *topic.Router, db store.Store) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:    make(chan Msg, 64),
		state:    state,
		sessions: sessions,
		router:   router,
		db:       db,
		outboxes: make(map[string]chan auction.Event),
		log:      log.WithField("auction", state.Auction.ID),
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) AuctionID() string { return r.state.Auction.ID }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)
			case Command:
				msg.Reply <- r.handleCommand(msg)
			case RequestReconnection:
				msg.Reply <- r.handleRequestReconnection(msg)
			case ApproveReconnection:
				msg.Reply <- r.handleApproveReconnection(msg)
			case AddUser:
				msg.Reply <- r.handleAddUser(msg)
			case Disconnect:
				r.handleDisconnect(msg)
			case GetView:
				msg.Reply <- r.snapshot()
			case Shutdown:
				for connID, ob := range r.outboxes {
					r.router.LeaveAll(connID)
					close(ob)
				}
				clear(r.outboxes)
				r.cancel()
				return
			}
		}
	}
}

// resolve maps a credential to a user and enforces auction scope.
func (r *Room) resolve(credential string) (models.User, error) {
	u, err := r.sessions.Resolve(credential)
	if err != nil {
		return models.User{}, err
	}
	if u.AuctionID != r.state.Auction.ID {
		return models.User{}, fmt.Errorf("session belongs to another auction: %w", auction.ErrNotAuthorized)
	}
	return u, nil
}

func (r *Room) handleJoin(msg Join) JoinResult {
	u, err := r.resolve(msg.Credential)
	if err != nil {
		return JoinResult{Err: err}
	}
	switch msg.Kind {
	case JoinAdmin:
		if u.Role != models.RoleAuctionMaster {
			return JoinResult{Err: fmt.Errorf("admin channel is master-only: %w", auction.ErrNotAuthorized)}
		}
	case JoinWaiting:
		if r.state.Auction.Status != models.StatusDraft {
			return JoinResult{Err: fmt.Errorf("waiting room is closed once the auction starts: %w", auction.ErrInvalidState)}
		}
	}

	now := r.now()
	u, events, err := r.sessions.Connect(msg.Credential, msg.ConnID, now)
	if err != nil {
		return JoinResult{Err: err}
	}

	id := r.state.Auction.ID
	r.outboxes[msg.ConnID] = msg.Outbox
	r.router.Join(topic.Auction(id), msg.ConnID, msg.Outbox)
	if u.Role == models.RoleAuctionMaster {
		r.router.Join(topic.Admin(id), msg.ConnID, msg.Outbox)
	}
	if r.state.Auction.Status == models.StatusDraft {
		r.router.Join(topic.Waiting(id), msg.ConnID, msg.Outbox)
	}

	if err := r.db.SaveAuctionState(r.ctx, store.Delta{Users: []*models.User{&u}}); err != nil {
		r.log.WithError(err).Error("persisting connection state")
		// The join itself stands; liveness fields catch up on the next write.
	}
	r.publish(events)

	r.log.WithFields(log.Fields{"user": u.DisplayName, "conn": msg.ConnID}).Info("participant joined")
	return JoinResult{User: u, Snapshot: r.snapshot()}
}

func (r *Room) handleCommand(msg Command) error {
	u, err := r.resolve(msg.Credential)
	if err != nil {
		return err
	}
	now := r.now()
	if u.ConnID != "" {
		r.sessions.Touch(u.ConnID, now)
	}

	cmd := auction.Command{
		Type: msg.Type,
		Actor: auction.Actor{
			UserID:              u.ID,
			UserName:            u.DisplayName,
			Role:                u.Role,
			TeamID:              u.TeamID,
			ReconnectionPending: u.IsReconnectionPending,
		},
		SchoolID: msg.SchoolID,
		Amount:   msg.Amount,
		TeamID:   msg.TeamID,
		SlotID:   msg.SlotID,
		Status:   msg.Status,
		Now:      now,
	}

	// Apply against a clone so a failed persist leaves the live state
	// untouched; the swap below is the commit point.
	next := r.state.Clone()
	events, err := auction.Apply(next, cmd)
	if err != nil {
		return err
	}

	if err := r.db.SaveAuctionState(r.ctx, buildDelta(next, events)); err != nil {
		r.log.WithError(err).Error("persisting auction state")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	r.state = next

	for _, evt := range events {
		if evt.Type == auction.EvtStatusChanged &&
			(evt.Status == models.StatusComplete || evt.Status == models.StatusArchived) {
			r.sessions.ClearPendingForAuction(r.state.Auction.ID)
		}
	}
	r.publish(events)
	return nil
}

// buildDelta collects the entities an accepted command touched: always the
// auction row, plus any team, school, or roster referenced by the resulting
// events. The ephemeral round is deliberately absent.
func buildDelta(s *auction.State, events []auction.Event) store.Delta {
	d := store.Delta{Auction: &s.Auction}
	teams := make(map[string]bool)
	schools := make(map[string]bool)
	for _, evt := range events {
		if evt.TeamID != "" {
			teams[evt.TeamID] = true
		}
		if evt.SchoolID != "" {
			schools[evt.SchoolID] = true
		}
	}
	for id := range teams {
		if t := s.Teams[id]; t != nil {
			d.Teams = append(d.Teams, t)
			d.Slots = append(d.Slots, s.Slots[id]...)
		}
	}
	for id := range schools {
		if sc := s.Schools[id]; sc != nil {
			d.Schools = append(d.Schools, sc)
		}
	}
	return d
}

func (r *Room) handleRequestReconnection(msg RequestReconnection) error {
	if _, err := r.resolve(msg.Credential); err != nil {
		return err
	}
	u, events, err := r.sessions.RequestReconnection(msg.Credential, r.now())
	if err != nil {
		return err
	}
	if err := r.db.SaveAuctionState(r.ctx, store.Delta{Users: []*models.User{&u}}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	r.publish(events)
	return nil
}

func (r *Room) handleApproveReconnection(msg ApproveReconnection) error {
	approver, err := r.resolve(msg.Credential)
	if err != nil {
		return err
	}
	if approver.Role != models.RoleAuctionMaster {
		return fmt.Errorf("only the auction master approves reconnections: %w", auction.ErrNotAuthorized)
	}
	target, ok := r.sessions.Get(msg.UserID)
	if !ok || target.AuctionID != r.state.Auction.ID {
		return fmt.Errorf("user %q: %w", msg.UserID, auction.ErrNotFound)
	}
	u, events, err := r.sessions.ApproveReconnection(msg.UserID, approver.DisplayName, r.now())
	if err != nil {
		return err
	}
	if err := r.db.SaveAuctionState(r.ctx, store.Delta{Users: []*models.User{&u}}); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	r.publish(events)
	return nil
}

func (r *Room) handleAddUser(msg AddUser) error {
	r.sessions.Register(msg.User)
	now := r.now()
	events := []auction.Event{{
		Type: auction.EvtUserJoined, Scope: auction.ScopeAuction,
		UserID: msg.User.ID, UserName: msg.User.DisplayName, At: now,
	}}
	if r.state.Auction.Status == models.StatusDraft {
		events = append(events, auction.Event{
			Type: auction.EvtUserJoined, Scope: auction.ScopeWaiting,
			UserID: msg.User.ID, UserName: msg.User.DisplayName, At: now,
		})
	}
	r.publish(events)
	return nil
}

func (r *Room) handleDisconnect(msg Disconnect) {
	// A disconnect mid-command never rolls back anything already committed;
	// it only invalidates the connection's topic memberships.
	r.router.LeaveAll(msg.ConnID)
	// Closing the outbox ends the connection's writer. Safe only after
	// LeaveAll: the router no longer holds a send reference.
	if ob, found := r.outboxes[msg.ConnID]; found {
		close(ob)
		delete(r.outboxes, msg.ConnID)
	}
	u, events, ok := r.sessions.Disconnect(msg.ConnID, msg.Reason, r.now())
	if !ok {
		return
	}
	if err := r.db.SaveAuctionState(r.ctx, store.Delta{Users: []*models.User{&u}}); err != nil {
		r.log.WithError(err).Error("persisting disconnect")
	}
	r.publish(events)
	r.log.WithFields(log.Fields{"user": u.DisplayName, "reason": msg.Reason}).Info("participant disconnected")
}

// publish routes events to their topics. Delivery is best-effort: a
// broadcast problem never unwinds a persisted state change.
func (r *Room) publish(events []auction.Event) {
	id := r.state.Auction.ID
	for _, evt := range events {
		switch evt.Scope {
		case auction.ScopeAuction:
			r.router.Publish(topic.Auction(id), evt)
		case auction.ScopeAdmin:
			r.router.Publish(topic.Admin(id), evt)
		case auction.ScopeWaiting:
			r.router.Publish(topic.Waiting(id), evt)
		case auction.ScopeDirect:
			if target, ok := r.sessions.Get(evt.UserID); ok && target.ConnID != "" {
				r.router.Direct(target.ConnID, evt)
			}
		}
	}
}

func (r *Room) snapshot() Snapshot {
	s := r.state
	snap := Snapshot{Auction: s.Auction, Round: s.Round}
	if team, ok := s.NominatingTeam(); ok {
		snap.NominatingTeam = team
	}
	for _, id := range s.Order {
		snap.Teams = append(snap.Teams, *s.Teams[id])
		for _, sl := range s.Slots[id] {
			snap.Slots = append(snap.Slots, *sl)
		}
	}
	for _, sc := range s.Schools {
		snap.Schools = append(snap.Schools, *sc)
	}
	slices.SortFunc(snap.Schools, func(a, b models.AuctionSchool) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	snap.Users = r.sessions.UsersForAuction(s.Auction.ID)
	slices.SortFunc(snap.Users, func(a, b models.User) int {
		if a.DisplayName < b.DisplayName {
			return -1
		}
		if a.DisplayName > b.DisplayName {
			return 1
		}
		return 0
	})
	return snap
}
