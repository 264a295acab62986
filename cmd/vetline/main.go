package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vetline/internal/config"
	"vetline/internal/constants"
	"vetline/internal/database"
	"vetline/internal/realtime"
	"vetline/internal/retry"
	"vetline/internal/service"
	"vetline/internal/tracing"
	"vetline/pkg/greenapi"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Vetline %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	// Optional .env for local development; the real environment wins.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting Vetline")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	channelManager, err := service.NewChannelManager(cfg.Channels)
	if err != nil {
		return fmt.Errorf("failed to create channel manager: %w", err)
	}

	hub := realtime.NewHub(logger)
	ingest := service.NewIngestService(db, hub, logger)

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	// One provider client, conversation service, send coordinator and poller
	// per configured clinic channel.
	clinics := make(map[string]*clinicRuntime, len(cfg.Channels))
	pollers := make([]*service.Poller, 0, len(cfg.Channels))
	for _, channel := range cfg.Channels {
		apiClient := greenapi.NewClient(greenapi.ClientConfig{
			BaseURL:    cfg.GreenAPI.APIBaseURL,
			InstanceID: channel.InstanceID,
			APIToken:   channel.APIToken,
			Timeout:    time.Duration(cfg.GreenAPI.TimeoutSec) * time.Second,
		})

		sender := service.NewSendCoordinator(apiClient, db, hub,
			time.Duration(cfg.GreenAPI.SendRefreshDelayMs)*time.Millisecond, logger)

		clinics[channel.ClinicID] = &clinicRuntime{
			conversations: service.NewConversationService(db, apiClient, logger),
			sender:        sender,
		}

		poller := service.NewPoller(apiClient, ingest, service.PollerConfig{
			ClinicID:        channel.ClinicID,
			PollIntervalSec: cfg.GreenAPI.PollIntervalSec,
			MaxDrain:        cfg.GreenAPI.MaxDrainPerCycle,
		}, logger)
		if err := poller.Start(ctxWithVerbose); err != nil {
			logger.Warnf("Failed to start poller for clinic %s: %v", channel.ClinicID, err)
			continue
		}
		pollers = append(pollers, poller)
	}
	defer func() {
		for _, p := range pollers {
			p.Stop()
		}
	}()

	logger.WithField("channels", len(cfg.Channels)).Info("Clinic channels initialized")

	server := NewServer(cfg, channelManager, ingest, hub, clinics, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
