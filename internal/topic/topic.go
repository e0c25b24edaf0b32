// Package topic is the broadcast fabric: named topics, connection
// membership, and best-effort fan-out. Delivery is fire-and-forget — a
// subscriber that misses an event catches up from the full-state resync it
// receives on its next join.
package topic

import (
	"fmt"
	"sync"

	"github.com/draftroom/auction-backend/internal/auction"
	log "github.com/sirupsen/logrus"
)

// Topic names, per auction.
func Auction(auctionID string) string { return fmt.Sprintf("auction-%s", auctionID) }
func Admin(auctionID string) string   { return fmt.Sprintf("admin-%s", auctionID) }
func Waiting(auctionID string) string { return fmt.Sprintf("waiting-%s", auctionID) }

// Router maps topics to member connections. Safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan<- auction.Event // topic -> conn id -> outbox
	conns  map[string]chan<- auction.Event            // conn id -> outbox, for direct sends
}

func NewRouter() *Router {
	return &Router{
		topics: make(map[string]map[string]chan<- auction.Event),
		conns:  make(map[string]chan<- auction.Event),
	}
}

// Join adds a connection to a topic. Joining twice is a no-op: membership is
// keyed by connection id, so a rejoin never duplicates delivery.
func (r *Router) Join(topic, connID string, outbox chan<- auction.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.topics[topic]
	if members == nil {
		members = make(map[string]chan<- auction.Event)
		r.topics[topic] = members
	}
	members[connID] = outbox
	r.conns[connID] = outbox
}

// Leave removes a connection from a topic. Idempotent.
func (r *Router) Leave(topic, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members := r.topics[topic]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
}

// LeaveAll drops a connection from every topic and from direct delivery,
// used on transport-level disconnect.
func (r *Router) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, members := range r.topics {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
	delete(r.conns, connID)
}

// Publish delivers an event to every current member of a topic. A full
// outbox drops that delivery rather than blocking the publisher; the client
// reconciles on its next resync.
func (r *Router) Publish(topic string, evt auction.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for connID, outbox := range r.topics[topic] {
		select {
		case outbox <- evt:
		default:
			log.WithFields(log.Fields{
				"topic": topic, "conn": connID, "event": evt.Type,
			}).Warn("outbox full, dropping event")
		}
	}
}

// Direct delivers an event to exactly one connection.
func (r *Router) Direct(connID string, evt auction.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	outbox, ok := r.conns[connID]
	if !ok {
		return
	}
	select {
	case outbox <- evt:
	default:
		log.WithFields(log.Fields{"conn": connID, "event": evt.Type}).
			Warn("outbox full, dropping direct event")
	}
}

// Members returns the current membership size of a topic.
func (r *Router) Members(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
