package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundi/config"
	"fundi/internal/database"
	"fundi/internal/router"
	"fundi/pkg/payment"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	if err := database.SeedAdmin(db, &cfg.Admin); err != nil {
		log.Error().Err(err).Msg("seed admin")
	}

	engine := router.Setup(cfg, db, newProvider(cfg))
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// newProvider falls back to the sandbox when no Daraja credentials are set.
// Production refuses to start without them.
func newProvider(cfg *config.Config) payment.Provider {
	m := cfg.Mpesa
	if m.ConsumerKey == "" {
		if cfg.IsProduction() {
			log.Fatal().Msg("MPESA_CONSUMER_KEY is required in production")
		}
		log.Warn().Str("component", "mpesa").Msg("no Daraja credentials, using sandbox provider")
		return payment.SandboxProvider{}
	}
	return payment.NewDarajaClient(payment.DarajaConfig{
		BaseURL:        m.BaseURL,
		ConsumerKey:    m.ConsumerKey,
		ConsumerSecret: m.ConsumerSecret,
		ShortCode:      m.ShortCode,
		Passkey:        m.Passkey,
		CallbackURL:    m.SignedCallbackURL(),
		Timeout:        m.Timeout,
	})
}
