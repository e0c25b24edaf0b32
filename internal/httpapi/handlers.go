package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/draftroom/auction-backend/internal/auction"
	"github.com/draftroom/auction-backend/internal/codes"
	"github.com/draftroom/auction-backend/internal/hub"
	"github.com/draftroom/auction-backend/internal/models"
	"github.com/draftroom/auction-backend/internal/room"
	"github.com/draftroom/auction-backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type CreateAuctionRequest struct {
	Name       string `json:"name"`
	MasterName string `json:"master_name"`
	Teams      []struct {
		Name   string   `json:"name"`
		Budget int      `json:"budget"`
		Slots  []string `json:"slots"`
	} `json:"teams"`
	Schools []struct {
		Name            string          `json:"name"`
		Conference      string          `json:"conference"`
		Position        string          `json:"position"`
		ProjectedPoints decimal.Decimal `json:"projected_points"`
	} `json:"schools"`
}

type CreateAuctionResponse struct {
	AuctionID        string `json:"auction_id"`
	JoinCode         string `json:"join_code"`
	RecoveryCode     string `json:"recovery_code"`
	MasterCredential string `json:"master_credential"`
}

// CreateAuction sets up a draft auction: access codes, teams with rosters,
// the school pool, and the auction-master user whose credential is returned
// once and never again.
func CreateAuction(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAuctionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.MasterName == "" || len(req.Teams) == 0 {
			http.Error(w, "name, master_name and at least one team required", http.StatusBadRequest)
			return
		}

		exists := func(code string) (bool, error) { return db.CodeInUse(r.Context(), code) }
		joinCode, err := codes.NewJoinCode(exists)
		if err != nil {
			codeError(w, err)
			return
		}
		recoveryCode, err := codes.NewRecoveryCode(exists)
		if err != nil {
			codeError(w, err)
			return
		}

		resp, err := createAuction(r, db, req, joinCode, recoveryCode)
		if err != nil {
			log.WithError(err).Error("creating auction")
			http.Error(w, "failed to create auction", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func codeError(w http.ResponseWriter, err error) {
	if errors.Is(err, auction.ErrGenerationExhausted) {
		http.Error(w, "failed to allocate a unique code", http.StatusConflict)
		return
	}
	http.Error(w, "failed to generate code", http.StatusInternalServerError)
}

func createAuction(r *http.Request, db store.Store, req CreateAuctionRequest, joinCode, recoveryCode string) (CreateAuctionResponse, error) {
	ctx := r.Context()
	now := time.Now().UTC()
	a := models.Auction{
		ID:           uuid.NewString(),
		Name:         req.Name,
		JoinCode:     joinCode,
		RecoveryCode: recoveryCode,
		Status:       models.StatusDraft,
		CreatedDate:  now,
		ModifiedDate: now,
	}
	if err := db.CreateAuction(ctx, a); err != nil {
		return CreateAuctionResponse{}, err
	}

	for i, t := range req.Teams {
		team := models.Team{
			ID:              uuid.NewString(),
			AuctionID:       a.ID,
			Name:            t.Name,
			Budget:          t.Budget,
			RemainingBudget: t.Budget,
			NominationOrder: i,
			IsActive:        true,
		}
		if err := db.CreateTeam(ctx, team); err != nil {
			return CreateAuctionResponse{}, err
		}
		for j, pos := range t.Slots {
			slot := models.RosterSlot{ID: uuid.NewString(), TeamID: team.ID, Position: pos, Index: j}
			if err := db.CreateSlot(ctx, slot); err != nil {
				return CreateAuctionResponse{}, err
			}
		}
	}

	for _, sc := range req.Schools {
		school := models.AuctionSchool{
			ID:              uuid.NewString(),
			AuctionID:       a.ID,
			SchoolID:        uuid.NewString(),
			Name:            sc.Name,
			Conference:      sc.Conference,
			Position:        sc.Position,
			ProjectedPoints: sc.ProjectedPoints,
			IsAvailable:     true,
		}
		if err := db.CreateSchool(ctx, school); err != nil {
			return CreateAuctionResponse{}, err
		}
	}

	credential := uuid.NewString()
	master := models.User{
		ID:          uuid.NewString(),
		AuctionID:   a.ID,
		DisplayName: req.MasterName,
		Credential:  credential,
		Role:        models.RoleAuctionMaster,
	}
	if err := db.CreateUser(ctx, master); err != nil {
		return CreateAuctionResponse{}, err
	}

	log.WithFields(log.Fields{"auction": a.ID, "name": a.Name}).Info("auction created")
	return CreateAuctionResponse{
		AuctionID:        a.ID,
		JoinCode:         joinCode,
		RecoveryCode:     recoveryCode,
		MasterCredential: credential,
	}, nil
}

type JoinAuctionRequest struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	TeamID      string `json:"team_id,omitempty"`
}

type JoinAuctionResponse struct {
	UserID     string `json:"user_id"`
	Credential string `json:"credential"`
}

// JoinAuction creates a participant for an auction found by join code and
// hands back the session credential for the websocket connection.
func JoinAuction(h *hub.Hub, db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req JoinAuctionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		role, ok := models.ParseRole(req.Role)
		if !ok || role == models.RoleAuctionMaster {
			http.Error(w, "role must be team_coach, proxy_coach or viewer", http.StatusBadRequest)
			return
		}
		if req.DisplayName == "" {
			http.Error(w, "display_name required", http.StatusBadRequest)
			return
		}
		a, err := db.FindAuctionByJoinCode(r.Context(), code)
		if err != nil {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}

		u := models.User{
			ID:          uuid.NewString(),
			AuctionID:   a.ID,
			DisplayName: req.DisplayName,
			Credential:  uuid.NewString(),
			Role:        role,
			TeamID:      req.TeamID,
		}
		if err := db.CreateUser(r.Context(), u); err != nil {
			if errors.Is(err, store.ErrDuplicateName) {
				http.Error(w, "display name already taken", http.StatusConflict)
				return
			}
			http.Error(w, "failed to create user", http.StatusInternalServerError)
			return
		}

		// If the room is live, announce the newcomer.
		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{AuctionID: a.ID, Reply: reply}
		if rm := <-reply; rm != nil {
			addReply := make(chan error, 1)
			rm.Inbox() <- room.AddUser{User: u, Reply: addReply}
			<-addReply
		}

		writeJSON(w, http.StatusCreated, JoinAuctionResponse{UserID: u.ID, Credential: u.Credential})
	}
}

// Snapshot returns the authoritative auction view for a join code.
func Snapshot(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		reply := make(chan hub.RoomResult, 1)
		h.Inbox() <- hub.EnsureRoom{JoinCode: code, Reply: reply}
		res := <-reply
		if res.Err != nil {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		viewReply := make(chan room.Snapshot, 1)
		res.Room.Inbox() <- room.GetView{Reply: viewReply}
		writeJSON(w, http.StatusOK, <-viewReply)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
