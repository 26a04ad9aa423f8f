package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/api"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/config"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/events"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/gpu"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/history"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/media"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/modelfetch"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/notify"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/pipeline"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/storage"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/transcribe"
	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/watch"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level")
	flag.StringVar(&overrides.ModelPath, "model", "", "path to the speech model directory")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "directory to watch for video drops")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "directory for watch-mode results")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("vosk-captions starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GPU environment and capability probe. A machine with no GPU still
	// runs everything on the software encoder.
	gpu.ApplyEnv(log)
	runner := media.ExecRunner{}
	caps := gpu.Probe(ctx, runner, log.With().Str("component", "gpu").Logger())
	log.Info().Str("encoder", caps.Summary()).Msg("hardware probe complete")

	if !media.CheckFFmpeg() {
		log.Fatal().Msg("ffmpeg and ffprobe are required but not found in PATH")
	}
	ffmpeg := media.New(runner, log.With().Str("component", "ffmpeg").Logger())

	// Speech provider: remote vosk-server when configured, otherwise the
	// in-process model.
	var provider transcribe.Provider
	if cfg.VoskServerURL != "" {
		provider = transcribe.NewServerClient(cfg.VoskServerURL, cfg.JobTimeout,
			log.With().Str("component", "transcribe").Logger())
	} else {
		if err := modelfetch.Ensure(ctx, cfg.ModelPath, cfg.ModelURL,
			log.With().Str("component", "model").Logger()); err != nil {
			log.Fatal().Err(err).Msg("speech model unavailable")
		}
		engine, err := transcribe.NewEngine(cfg.ModelPath,
			log.With().Str("component", "transcribe").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load speech model")
		}
		provider = engine
	}
	defer provider.Close()

	// Job history (optional)
	var db *history.DB
	if cfg.DatabaseURL != "" {
		db, err = history.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "history").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	}

	// MQTT completion events (optional)
	var notifier *notify.Publisher
	if cfg.MQTTBrokerURL != "" {
		notifier, err = notify.Connect(notify.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer notifier.Close()
	}

	// Result store: S3 when configured, local output directory otherwise.
	store, err := storage.New(cfg.S3, cfg.OutputDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize result store")
	}

	hub := events.NewHub(log.With().Str("component", "events").Logger())

	pipe := pipeline.New(pipeline.Options{
		Provider:         provider,
		FFmpeg:           ffmpeg,
		Caps:             caps,
		FontPath:         cfg.FontPath,
		FontsDir:         cfg.FontsDir,
		FontSize:         cfg.FontSize,
		YOffset:          cfg.YOffset,
		HWAccel:          cfg.HWAccel,
		VideoBitrate:     cfg.VideoBitrate,
		SampleRate:       cfg.SampleRate,
		JobTimeout:       cfg.JobTimeout,
		MaxConcurrent:    cfg.MaxConcurrentJobs,
		Workers:          cfg.Workers,
		QueueSize:        cfg.QueueSize,
		Hub:              hub,
		Notifier:         notifier,
		History:          db,
		Store:            store,
		StoreHTTPResults: cfg.S3.Enabled(),
		Log:              log.With().Str("component", "pipeline").Logger(),
	})

	// Watch-directory ingest (optional)
	var watcher *watch.Watcher
	if cfg.WatchDir != "" {
		pipe.Start()
		watcher = watch.New(pipe, cfg.WatchDir, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.WatchDir).Msg("failed to start directory watcher")
		}
	}

	// Prune old local results (optional)
	var pruner *storage.OutputPruner
	if cfg.OutputRetention > 0 && store.Type() == "local" {
		pruner = storage.NewOutputPruner(cfg.OutputDir, cfg.OutputRetention,
			log.With().Str("component", "pruner").Logger())
		pruner.Start()
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Pipeline:     pipe,
		Hub:          hub,
		History:      db,
		Notifier:     notifier,
		Watcher:      watcher,
		Caps:         caps,
		ProviderName: provider.Name(),
		ModelName:    provider.Model(),
	}, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	if watcher != nil {
		watcher.Stop()
		pipe.Stop()
	}
	if pruner != nil {
		pruner.Stop()
	}

	log.Info().Msg("vosk-captions stopped")
}
