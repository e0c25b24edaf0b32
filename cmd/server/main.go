package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftroom/auction-backend/internal/config"
	"github.com/draftroom/auction-backend/internal/httpapi"
	"github.com/draftroom/auction-backend/internal/hub"
	"github.com/draftroom/auction-backend/internal/session"
	"github.com/draftroom/auction-backend/internal/store"
	"github.com/draftroom/auction-backend/internal/store/postgres"
	"github.com/draftroom/auction-backend/internal/topic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	cfg.ApplyLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db store.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("opening database")
		}
		db = pg
		log.Info("using postgres store")
	} else {
		db = store.NewMemory()
		log.Warn("using in-memory store; auctions will not survive a restart")
	}

	sessions := session.NewStore()
	router := topic.NewRouter()
	h := hub.NewHub(ctx, sessions, router, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.SetupRoutes(h, db),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
