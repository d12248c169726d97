package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mediaforge/config"
	"mediaforge/credentials"
	"mediaforge/encoder"
	"mediaforge/failures"
	"mediaforge/job"
	"mediaforge/logger"
	"mediaforge/metrics"
	"mediaforge/retention"
	"mediaforge/routes"
	"mediaforge/success"
	taskqueue "mediaforge/taskQueue"
	writerbackends "mediaforge/writerBackends"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogFile, true); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg); err != nil {
		logger.Errorf("MediaForge stopped with error: %v", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run(cfg *config.Config) error {
	logger.Info("Starting MediaForge server initialization")

	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}
	encoder.CheckTools()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("Initializing credentials database")
	creds, err := credentials.OpenDB(cfg.CredentialsDBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	defer creds.Close()

	logger.Debug("Initializing failures database")
	failureStore, err := failures.Open(cfg.FailuresDBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize failure store: %w", err)
	}
	defer failureStore.Close()

	logger.Debug("Initializing success database")
	successStore, err := success.Open(cfg.SuccessDBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize success store: %w", err)
	}
	defer successStore.Close()

	logger.Debug("Initializing deletion queue")
	queue, err := taskqueue.OpenQueue(cfg.DeletionQueueDBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize deletion queue: %w", err)
	}
	defer queue.Close()
	logger.Info("Databases initialized successfully")

	var relay *writerbackends.Relay
	if cfg.Backend == config.BackendSFTP || cfg.Backend == config.BackendLocal {
		secret, err := creds.RelaySecret(cfg.RelaySecret)
		if err != nil {
			return fmt.Errorf("failed to load relay secret: %w", err)
		}
		relay = writerbackends.NewRelay(cfg.PublicURL(), secret)
	}

	store, err := writerbackends.Open(ctx, cfg, relay)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Infof("Using %s backend, container %q", cfg.Backend, store.Container())

	m := metrics.New()

	scheduler := taskqueue.NewScheduler(queue, store, store.Container(), m)
	defer scheduler.Close()
	if _, err := scheduler.Resume(ctx); err != nil {
		// don't exit; the records stay for the next start
		logger.Errorf("Failed to resume pending deletions: %v", err)
	}

	manager := retention.NewManager(cfg.ScratchDirs(), m)
	loop := retention.NewReclaimLoop(manager, cfg.RetentionMaxAge, cfg.ReclaimInterval, cfg.RecordMaxAge,
		successStore, failureStore)

	tracker := job.NewTracker()
	orchestrator := &job.Orchestrator{
		Store:       store,
		Transcoder:  encoder.NewDispatcher(cfg.TranscodeTimeout),
		Deletions:   scheduler,
		InboundDir:  cfg.InboundDir,
		OutboundDir: cfg.OutboundDir,
		URLExpiry:   cfg.SignedURLExpiry(),
		DeleteDelay: cfg.DeleteDelay(),
		Successes:   successStore,
		Failures:    failureStore,
		Tracker:     tracker,
		Metrics:     m,
	}

	handler := routes.NewRouter(&routes.Server{
		Config:    cfg,
		Store:     store,
		Relay:     relay,
		Jobs:      orchestrator,
		Tracker:   tracker,
		Retention: manager,
		Successes: successStore,
		Failures:  failureStore,
		Metrics:   m,
	})
	srv := routes.NewHTTPServer(cfg, handler)

	g, gctx := errgroup.WithContext(ctx)
	loop.Start(gctx)

	g.Go(func() error {
		logger.Infof("MediaForge server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	loop.Stop()
	wiped := manager.PurgeAll()
	logger.Infof("Removed %d scratch files at shutdown", wiped.DeletedCount)
	return err
}
