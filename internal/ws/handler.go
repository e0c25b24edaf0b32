package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/hub"
	"github.com/draftroom/auction-backend/internal/models"
	"github.com/draftroom/auction-backend/internal/room"
	"github.com/draftroom/auction-backend/internal/types"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const writeTimeout = 3 * time.Second

// Handler upgrades a connection and binds it to its auction's room.
// Query parameters: code (public join code), session (opaque credential),
// channel (auction|waiting|admin, default auction).
func Handler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		credential := r.URL.Query().Get("session")
		if code == "" || credential == "" {
			http.Error(w, "missing code or session", http.StatusBadRequest)
			return
		}
		kind := room.JoinAuction
		switch r.URL.Query().Get("channel") {
		case "", "auction":
		case "waiting":
			kind = room.JoinWaiting
		case "admin":
			kind = room.JoinAdmin
		default:
			http.Error(w, "unknown channel", http.StatusBadRequest)
			return
		}

		reply := make(chan hub.RoomResult, 1)
		h.Inbox() <- hub.EnsureRoom{JoinCode: code, Reply: reply}
		res := <-reply
		if res.Err != nil {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		rm := res.Room

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan auction.Event, 32)
		joinReply := make(chan room.JoinResult, 1)
		rm.Inbox() <- room.Join{
			Credential: credential, ConnID: connID, Outbox: outbox, Kind: kind, Reply: joinReply,
		}
		joined := <-joinReply
		if joined.Err != nil {
			writeMessage(r.Context(), conn, types.ServerMessage{Type: "Error", Error: joined.Err.Error()})
			return
		}
		defer func() { rm.Inbox() <- room.Disconnect{ConnID: connID, Reason: "socket closed"} }()

		// Full-state resync first, then live events.
		writeMessage(r.Context(), conn, types.ServerMessage{Type: "StateSnapshot", Snapshot: &joined.Snapshot})

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for evt := range outbox {
				e := evt
				if !writeMessage(writeCtx, conn, types.ServerMessage{Type: "Event", Event: &e}) {
					return
				}
			}
		}()

		readLoop(r.Context(), conn, rm, credential)
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, rm *room.Room, credential string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.WithError(err).Debug("websocket read ended")
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeMessage(ctx, conn, types.ServerMessage{Type: "Error", Error: "bad json"})
			continue
		}

		msg, ok := toRoomMsg(cm, credential)
		if !ok {
			writeMessage(ctx, conn, types.ServerMessage{Type: "Error", Error: "unknown command"})
			continue
		}
		reply := make(chan error, 1)
		switch m := msg.(type) {
		case room.Command:
			m.Reply = reply
			rm.Inbox() <- m
		case room.RequestReconnection:
			m.Reply = reply
			rm.Inbox() <- m
		case room.ApproveReconnection:
			m.Reply = reply
			rm.Inbox() <- m
		}
		if err := <-reply; err != nil {
			// Validation failures go back to this connection only.
			writeMessage(ctx, conn, types.ServerMessage{Type: "Error", Error: err.Error()})
		}
	}
}

// toRoomMsg translates a wire frame into a room message. Credentials ride
// along so the room resolves the actor itself.
func toRoomMsg(m types.ClientMessage, credential string) (room.Msg, bool) {
	cmd := room.Command{Credential: credential}
	switch m.Type {
	case "Nominate":
		cmd.Type, cmd.SchoolID = auction.CmdNominate, m.SchoolID
	case "PlaceBid":
		cmd.Type, cmd.SchoolID, cmd.Amount = auction.CmdPlaceBid, m.SchoolID, m.Amount
	case "Pass":
		cmd.Type = auction.CmdPass
	case "EndCurrentBid":
		cmd.Type = auction.CmdEndBid
	case "AssignSchoolToPosition":
		cmd.Type, cmd.TeamID, cmd.SchoolID, cmd.SlotID = auction.CmdAssignSchool, m.TeamID, m.SchoolID, m.SlotID
	case "SetStatus":
		status := models.Status(m.Status)
		cmd.Type, cmd.Status = auction.CmdSetStatus, status
	case "RequestReconnection":
		return room.RequestReconnection{Credential: credential}, true
	case "ApproveReconnection":
		return room.ApproveReconnection{Credential: credential, UserID: m.UserID}, true
	default:
		return nil, false
	}
	return cmd, true
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload) == nil
}
