// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/oguzcanoz/halisaha/internal/api/auth"
	"github.com/oguzcanoz/halisaha/internal/api/matchapi"
	"github.com/oguzcanoz/halisaha/internal/api/profileapi"
	"github.com/oguzcanoz/halisaha/internal/api/requests"
	"github.com/oguzcanoz/halisaha/internal/api/social"
	"github.com/oguzcanoz/halisaha/internal/api/stats"
	"github.com/oguzcanoz/halisaha/internal/config"
	"github.com/oguzcanoz/halisaha/internal/db"
	"github.com/oguzcanoz/halisaha/internal/email"
	"github.com/oguzcanoz/halisaha/internal/ratelimit"
	"github.com/oguzcanoz/halisaha/internal/realtime"
	"github.com/oguzcanoz/halisaha/internal/scheduler"
	"github.com/oguzcanoz/halisaha/internal/weather"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}

	hub := realtime.NewHub()
	weatherClient := weather.NewClient(cfg.Widgets.WeatherAPIKey)
	limiter := ratelimit.New(ratelimit.DefaultConfig())

	var sender email.Sender
	if cfg.Email.Sender != "" {
		sesClient, err := email.NewSESClient(
			cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey,
			cfg.Email.Region, cfg.Email.Sender,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create email client")
		}
		sender = sesClient
	} else {
		log.Warn().Msg("Email sender not configured, notifications disabled")
	}

	auth.InitHandlers(cfg, database.Queries, limiter)
	if cfg.Auth.ClerkSecretKey != "" {
		auth.InitClerk(cfg.Auth.ClerkSecretKey)
	}
	matchapi.InitHandlers(database, hub, weatherClient, cfg.Widgets.MapsAPIKey)
	requests.InitHandlers(database, hub, sender, limiter)
	profileapi.InitHandlers(database, hub)
	social.InitHandlers(database, hub)
	stats.InitHandlers(database, hub)

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterJobs(cfg.Scheduler, scheduler.JobDeps{DB: database, Email: sender}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduler jobs")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server := newServer(cfg, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown failed")
		}
		if err := hub.Shutdown(shutdownCtx); err != nil && err != context.DeadlineExceeded {
			log.Error().Err(err).Msg("Realtime hub shutdown failed")
		}
		limiter.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Database close failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
