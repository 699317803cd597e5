package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QTest-hq/phasescan/internal/api"
	"github.com/QTest-hq/phasescan/internal/config"
	"github.com/QTest-hq/phasescan/internal/phases"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	var opts []phases.Option
	if cfg.StartTasks != "" {
		opts = append(opts, phases.WithDefaultSource(cfg.StartTasks))
	}
	extractor := phases.New(opts...)

	source, err := extractor.DefaultPath()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve start-tasks file")
	}

	// Create server
	srv, err := api.NewServer(cfg, extractor)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not gracefully shutdown the server")
		}
		close(done)
	}()

	log.Info().Int("port", cfg.Port).Str("source", source).Msg("starting phase server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("could not listen on port")
	}

	<-done
	log.Info().Msg("server stopped")
}

// loadConfig reads the environment and overlays the project file found in
// PHASESCAN_PROJECT_DIR, the same way the CLI does for --project.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	project, err := config.LoadProjectConfig(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.ProjectFile, err)
	}
	cfg.ApplyProject(project)

	return cfg, nil
}
