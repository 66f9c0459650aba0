package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mm-osint/newswire/internal/api"
	"github.com/mm-osint/newswire/internal/config"
	"github.com/mm-osint/newswire/internal/database"
	"github.com/mm-osint/newswire/internal/logger"
	"github.com/mm-osint/newswire/internal/migrator"
	"github.com/mm-osint/newswire/internal/nats"
	"github.com/mm-osint/newswire/internal/repository"
	"github.com/mm-osint/newswire/internal/web"
	"github.com/mm-osint/newswire/migrations"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting viewer service")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Connect to database. The viewer also applies migrations so that
	// either binary can be started first against a fresh database; the
	// migrator takes an advisory lock, so a concurrent collector is fine.
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	if err := mig.Up(ctx, db.Pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// 5. Connect to NATS. Browsing works without the broker, the live
	// feed over the websocket just stays quiet.
	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, live updates disabled")
	} else {
		defer nc.Close()
	}

	// 6. Initialize repositories
	messagesRepo := repository.NewMessagesRepository(db.Pool)
	channelsRepo := repository.NewChannelsRepository(db.Pool)
	imagesRepo := repository.NewImagesRepository(db.Pool)
	statsRepo := repository.NewStatsRepository(db.Pool)
	bookmarksRepo := repository.NewBookmarksRepository(db.Pool)

	// 7. API server
	apiCfg := &api.Config{
		Port:        cfg.ViewerPort,
		Title:       "Newswire Viewer API",
		Description: "Read API for browsing collected Telegram news messages",
		Version:     "1.0.0",
	}
	apiSrv := api.NewServer(apiCfg, &api.Dependencies{
		News:      messagesRepo,
		Channels:  channelsRepo,
		Images:    imagesRepo,
		Stats:     statsRepo,
		Bookmarks: bookmarksRepo,
	})

	// 8. WebSocket hub, fed from the bus when it is available
	hub := web.NewHub()
	go hub.Run()

	if nc != nil {
		consumer := web.NewConsumer(nc, hub, "viewer_dashboard", log.Component("web"))
		if err := consumer.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("dashboard consumer failed to start")
		}
	}

	// 9. Mount media files and the websocket next to the API
	mux := apiSrv.Mux()
	mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		web.ServeWs(hub, w, r)
	})

	// 10. Start server
	log.Info().Int("port", cfg.ViewerPort).Msg("starting viewer server")
	go func() {
		if err := apiSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 11. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
