package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/mediabot/internal/api"
	"github.com/iconidentify/mediabot/internal/api/handler"
	"github.com/iconidentify/mediabot/internal/bot"
	"github.com/iconidentify/mediabot/internal/config"
	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/downloader"
	"github.com/iconidentify/mediabot/internal/extractor"
	"github.com/iconidentify/mediabot/internal/repository"
	"github.com/iconidentify/mediabot/internal/service"
	"github.com/iconidentify/mediabot/internal/worker"
	"github.com/iconidentify/mediabot/pkg/ffmpeg"
	"github.com/iconidentify/mediabot/pkg/telegram"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mediabot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting mediabot",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	for _, dir := range []string{cfg.Storage.TempPath, cfg.Storage.OverflowPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	events, err := service.NewEventService(service.EventServiceConfig{
		RingBufferSize:  cfg.Events.RingBufferSize,
		PersistToSQLite: cfg.Events.PersistToSQLite,
		SQLitePath:      cfg.Events.SQLitePath,
		RetentionDays:   cfg.Events.RetentionDays,
	}, logger)
	if err != nil {
		return fmt.Errorf("init events: %w", err)
	}
	defer events.Close()

	tg, err := telegram.NewBot(telegram.Config{
		Token:          cfg.Telegram.Token,
		Debug:          cfg.Telegram.Debug,
		RequestTimeout: cfg.Telegram.RequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized on telegram", "username", tg.Username())

	// Duration is optional on uploads, so a missing ffprobe only costs metadata.
	var inspector service.VideoInspector
	if proc, err := ffmpeg.NewVideoProcessor(cfg.Fetch.FFmpegPath); err != nil {
		logger.Warn("video inspection disabled", "error", err)
	} else {
		inspector = proc
	}

	engine := extractor.New(extractor.Config{
		YtDlpPath:     cfg.Fetch.YtDlpPath,
		FFmpegPath:    cfg.Fetch.FFmpegPath,
		SocketTimeout: cfg.Fetch.SocketTimeout,
		Retries:       cfg.Fetch.Retries,
	}, downloader.NewHTTPDownloader(cfg.Fetch, logger), logger)

	allow := service.NewAllowList(cfg.AllowList.Platforms)

	strategist := service.NewStrategist(service.DeliveryConfig{
		LimitBytes:  cfg.Delivery.LimitBytes(),
		AlbumSize:   cfg.Delivery.AlbumSize,
		Caption:     cfg.Delivery.Caption,
		OverflowDir: cfg.Storage.OverflowPath,
	}, tg, inspector, logger)

	orchestrator := service.NewOrchestrator(service.OrchestratorConfig{
		TempRoot:       cfg.Storage.TempPath,
		FormatSelector: cfg.Fetch.FormatSelector(),
		JobTimeout:     cfg.Fetch.JobTimeout,
		MinFreeBytes:   cfg.Storage.MinFreeBytes,
		Progress:       service.ProgressConfig{Window: cfg.Fetch.ProgressWindow},
	}, allow, engine, strategist, tg, events, logger)

	pool := worker.NewPool(worker.Config{
		MaxConcurrent: cfg.Worker.MaxConcurrent,
		MaxPending:    cfg.Worker.MaxPending,
	}, logger)

	jobRepo := repository.NewInMemoryJobRepository(0)
	updates := bot.NewHandler(tg, allow, orchestrator, pool, jobRepo, events, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Server.Enabled {
		router := api.NewRouter(
			handler.NewHealthHandler(jobRepo, pool, cfg.Storage.OverflowPath),
			handler.NewJobHandler(jobRepo, logger),
			handler.NewEventHandler(events, logger),
			cfg.Server.APIKey,
			logger,
		)
		srv = &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info("starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("server error", "error", err)
				stop()
			}
		}()
	}

	go cleanupEvents(ctx, events, logger)

	events.EmitInfo(domain.EventCategorySystem, "", "bot started", nil)
	logger.Info("polling for updates", "timeout", cfg.Telegram.PollTimeout)
	updates.Serve(ctx, tg.Updates(cfg.Telegram.PollTimeout))

	logger.Info("shutting down")
	tg.StopReceivingUpdates()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}

	// In-flight jobs get the grace period, then their contexts are canceled.
	if err := pool.Stop(cfg.Worker.ShutdownTimeout); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}
	return nil
}

func cleanupEvents(ctx context.Context, events *service.EventService, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := events.CleanupOldEvents(ctx); err != nil {
			logger.Warn("event cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
