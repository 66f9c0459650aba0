package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mm-osint/newswire/internal/collector"
	"github.com/mm-osint/newswire/internal/config"
	"github.com/mm-osint/newswire/internal/database"
	"github.com/mm-osint/newswire/internal/images"
	"github.com/mm-osint/newswire/internal/logger"
	"github.com/mm-osint/newswire/internal/metrics"
	"github.com/mm-osint/newswire/internal/migrator"
	"github.com/mm-osint/newswire/internal/nats"
	"github.com/mm-osint/newswire/internal/publisher"
	"github.com/mm-osint/newswire/internal/repository"
	"github.com/mm-osint/newswire/internal/telegram"
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
	log.Info().Msg("starting collector service")

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

	// 4. Connect to database and apply migrations
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

	// 5. Connect to NATS. Collection never depends on the broker, so a
	// missing one only disables event publishing.
	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
	} else {
		defer nc.Close()
		if err := nc.EnsureNewsStream(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure news stream")
		}
	}

	var pub collector.EventPublisher
	if nc != nil {
		pub = publisher.NewNATSPublisher(nc.Conn)
	}

	// 6. Initialize repositories
	channelsRepo := repository.NewChannelsRepository(db.Pool)
	messagesRepo := repository.NewMessagesRepository(db.Pool)
	imagesRepo := repository.NewImagesRepository(db.Pool)
	rulesRepo := repository.NewRulesRepository(db.Pool)

	// 7. Initialize telegram manager
	if cfg.TGApiID == 0 || cfg.TGApiHash == "" {
		log.Fatal().Msg("TG_API_ID and TG_API_HASH are required")
	}

	tgManager := telegram.NewManager(cfg, db.GORM)
	if err := tgManager.Init(ctx); err != nil {
		// Status stays Unauthorized/Error; runs will refuse to start but
		// the control surface keeps serving so the operator can log in.
		log.Error().Err(err).Msg("telegram manager init failed")
	}

	tgClient := telegram.NewClient(tgManager)
	defer tgClient.Close()
	tgClient.SetRateLimit(cfg.RequestsPerSecond, 1)

	// 8. Image pipeline
	transcoder := images.NewTranscoder(cfg.MaxImageWidth, cfg.ImageQuality, cfg.KeepWebp)
	pipeline := images.NewPipeline(cfg.MediaDir, transcoder, log.Component("images"))

	// 9. Collection service & run manager
	svc := collector.NewService(
		tgClient,
		channelsRepo,
		messagesRepo,
		imagesRepo,
		rulesRepo,
		pipeline,
		pub,
		collector.Options{
			StartDate:     cfg.StartDate,
			MinTextLength: cfg.MinTextLength,
			BatchSize:     cfg.FetchBatchSize,
			Concurrency:   cfg.ChannelConcurrency,
		},
		log,
	)
	runManager := collector.NewRunManager(svc)
	handler := collector.NewHandler(runManager, channelsRepo, rulesRepo, tgClient, log)

	// 10. WebSocket hub, fed from the bus when it is available
	hub := web.NewHub()
	go hub.Run()

	if nc != nil {
		consumer := web.NewConsumer(nc, hub, "collector_dashboard", log.Component("web"))
		if err := consumer.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("dashboard consumer failed to start")
		}
	}

	// 11. Control server
	webCfg := &web.Config{
		Port:      cfg.HTTPPort,
		StaticDir: cfg.StaticDir,
	}
	server := web.NewServer(webCfg, hub)
	server.MountAPI(handler.Routes())

	// 12. Metrics server on its own port
	metricsSrv := metrics.NewServer(db, cfg.MetricsPort, log)
	go func() {
		if err := metricsSrv.Start(ctx); err != nil {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	// 13. Start server
	log.Info().Int("port", cfg.HTTPPort).Msg("starting control server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// 14. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	runManager.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
