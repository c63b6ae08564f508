package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/CedrosPay/txupdate/pkg/txservice"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("TXU_CONFIG_PATH"), "path to config yaml (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	// Missing .env is normal outside local development
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", *envFile).Msg("config.env_file_unreadable")
	}

	cfg, err := txservice.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config.load_failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := txservice.NewApp(ctx, cfg,
		txservice.WithService("txupdate-server"),
		txservice.WithVersion(version),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("app.init_failed")
	}

	server := app.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("address", cfg.Server.Address).Msg("server.listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error().Err(err).Msg("server.failed")
		}
	case <-ctx.Done():
		app.Logger.Info().Msg("server.shutting_down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("server.shutdown_failed")
	}
	if err := app.Close(); err != nil {
		app.Logger.Error().Err(err).Msg("app.close_failed")
		os.Exit(1)
	}
}
