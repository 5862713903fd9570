package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/ultralive/internal/adapters/http/api"
	"github.com/okian/ultralive/internal/adapters/repository"
	app "github.com/okian/ultralive/internal/app"
	"github.com/okian/ultralive/internal/config"
	"github.com/okian/ultralive/internal/domain/course"
	"github.com/okian/ultralive/internal/domain/feed"
	"github.com/okian/ultralive/internal/domain/model"
	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second

	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Our own system gauges replace the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	if err := seedSettings(ctx, store, cfg); err != nil {
		log.Error(ctx, "failed to seed race settings", logger.Error(err))
		return
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithRaceID(cfg.RaceID),
		app.WithPollInterval(time.Duration(cfg.PollIntervalSec) * time.Second),
		app.WithDedupeSize(cfg.DedupeSize),
	}
	if cfg.FeedURL != "" {
		opts = append(opts, app.WithSource(feed.NewHTTPSource(
			cfg.FeedURL, time.Duration(cfg.FetchTimeoutSec)*time.Second)))
	}
	if cfg.CourseGPXPath != "" {
		line, err := course.LoadGPX(cfg.CourseGPXPath, cfg.TimingMatLat, cfg.TimingMatLon, cfg.ReverseTrackDirection)
		if err != nil {
			log.Error(ctx, "failed to load course file",
				logger.String("path", cfg.CourseGPXPath), logger.Error(err))
			return
		}
		log.Info(ctx, "course loaded",
			logger.String("name", line.Name),
			logger.Int("points", len(line.Points)),
			logger.Float64("total_m", line.TotalM))
		opts = append(opts, app.WithCourse(line))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(ctx, mux)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// startSystemMetricsUpdater refreshes memory and goroutine gauges on a
// fixed interval.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateSystemMetrics()
		}
	}
}

// openStore selects Postgres when a DSN is configured, the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.PostgresDSN == "" {
		return repository.NewMemStore(), nil
	}
	return repository.OpenPostgres(ctx, cfg.PostgresDSN)
}

// seedSettings writes an initial settings row when none exists, so a fresh
// deployment can ingest without a manual insert. An existing row is the
// operators' and is left untouched.
func seedSettings(ctx context.Context, store repository.Store, cfg *config.Config) error {
	_, err := store.Settings(ctx, cfg.RaceID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	start := time.Now()
	if cfg.StartTime != "" {
		start, err = time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return err
		}
	}

	return store.SaveSettings(ctx, model.RaceSettings{
		RaceID:                   cfg.RaceID,
		State:                    model.RaceState(cfg.RaceState),
		StartTime:                start,
		StartTimeOffsetSec:       cfg.StartTimeOffsetSec,
		LapLengthKm:              cfg.LapLengthKm,
		FirstLapKm:               cfg.FirstLapKm,
		BreakThresholdMultiplier: cfg.BreakThresholdMultiplier,
		OverdueDisplaySec:        cfg.OverdueDisplaySec,
		CrewSpotOffsetMeters:     cfg.CrewSpotOffsetMeters,
		TimingMatLat:             cfg.TimingMatLat,
		TimingMatLon:             cfg.TimingMatLon,
		ReverseTrackDirection:    cfg.ReverseTrackDirection,
		FeedURL:                  cfg.FeedURL,
	})
}
