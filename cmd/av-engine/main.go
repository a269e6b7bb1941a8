package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/avscribe/av-engine/internal/api"
	"github.com/avscribe/av-engine/internal/batch"
	"github.com/avscribe/av-engine/internal/config"
	"github.com/avscribe/av-engine/internal/database"
	"github.com/avscribe/av-engine/internal/diarize"
	"github.com/avscribe/av-engine/internal/merge"
	"github.com/avscribe/av-engine/internal/source"
	"github.com/avscribe/av-engine/internal/summarize"
	"github.com/avscribe/av-engine/internal/transcribe"
	"github.com/avscribe/av-engine/internal/watch"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "directory of media files to process")
	flag.StringVar(&overrides.HTTPAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	flag.BoolVar(&overrides.ForceRetranscribe, "force", false, "retranscribe files that already have results")
	flag.BoolVar(&overrides.Watch, "watch", false, "keep running and process new files as they appear")
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
	log.Info().Str("version", version).Msg("av-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Media source
	var src source.Source
	switch cfg.SourceType {
	case "s3":
		s3src, err := source.NewS3Source(cfg.S3, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure s3 source")
		}
		if err := s3src.HeadBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.S3.Bucket).Msg("bucket not reachable")
		}
		src = s3src
	default:
		src = source.NewLocalSource(cfg.MediaDir)
	}

	// Transcription provider
	provider, err := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.ModelSize, cfg.MinAudioSeconds, cfg.WhisperTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure transcription provider")
	}

	// Optional stages
	var diarizer diarize.Engine
	if cfg.EnableDiarization {
		diarizer = diarize.NewClient(cfg.DiarizeURL, cfg.DiarizeTimeout)
	}
	var summarizer summarize.Summarizer
	if len(cfg.SummaryAPIKeys) > 0 {
		summarizer = summarize.NewGemini(cfg.SummaryAPIKeys, cfg.SummaryModel, cfg.SummaryCategories)
	}

	orchestrator := batch.New(batch.Options{
		Source:            src,
		Store:             db,
		Provider:          provider,
		Diarizer:          diarizer,
		Summarizer:        summarizer,
		ScratchDir:        cfg.ScratchDir,
		LanguageHint:      cfg.LanguageHint,
		BeamSize:          cfg.BeamSize,
		SpeakerPolicy:     merge.Policy(cfg.UnmatchedSpeakerPolicy),
		SkipExisting:      cfg.SkipAlreadyTranscribed,
		ForceRetranscribe: cfg.ForceRetranscribe,
		Workers:           cfg.WorkerConcurrency,
		ProgressInterval:  cfg.ProgressInterval,
		FileTimeout:       cfg.FileTimeout,
		Log:               log,
	})

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, db, version, startTime, httpLog)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Initial batch pass
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("batch run failed")
		}
	}()

	if cfg.Watch {
		if cfg.SourceType != "local" {
			log.Fatal().Msg("watch mode requires SOURCE_TYPE=local")
		}
		watcher := watch.New(cfg.MediaDir, func(ctx context.Context) {
			if _, err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("batch run failed")
			}
		}, log)
		if err := watcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start file watcher")
		}
		defer watcher.Stop()
	} else {
		// One-shot mode: exit once the batch pass finishes.
		go func() {
			<-done
			stop()
		}()
	}

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
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
	<-done

	log.Info().Msg("av-engine stopped")
}
