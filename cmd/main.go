package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/reqvault/reqvault/internal/config"
	"github.com/reqvault/reqvault/internal/logger"
	"github.com/reqvault/reqvault/internal/metrics"
	"github.com/reqvault/reqvault/internal/repository"
	"github.com/reqvault/reqvault/internal/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// Optional .env bootstrap for local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	lg := logger.GetLogger()

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to initialize repository")
	}

	ctx := lg.WithContext(context.Background())
	if err := repo.Migrate(ctx); err != nil {
		lg.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := os.MkdirAll(cfg.Capture.UploadDir, 0o755); err != nil {
		lg.Fatal().Err(err).Str("upload_dir", cfg.Capture.UploadDir).Msg("Failed to create upload directory")
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer, "reqvault", "reqvault")

	app := server.New(cfg, lg, repo, collector)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		lg.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("Starting capture server")
		if err := app.Listen(addr); err != nil {
			lg.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info().Msg("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		lg.Error().Err(err).Msg("Failed to shutdown server")
	}

	if err := repo.Close(); err != nil {
		lg.Error().Err(err).Msg("Failed to close repository")
	}
}
