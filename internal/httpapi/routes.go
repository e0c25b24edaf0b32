package httpapi

import (
	"net/http"

	"github.com/draftroom/auction-backend/internal/hub"
	"github.com/draftroom/auction-backend/internal/store"
	"github.com/draftroom/auction-backend/internal/ws"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *hub.Hub, db store.Store) http.Handler {
	r := chi.NewRouter()

	r.Post("/auctions", CreateAuction(db))
	r.Post("/auctions/{code}/join", JoinAuction(h, db))
	r.Get("/auctions/{code}", Snapshot(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h))
	return r
}
