package repository

import (
	"fmt"

	"github.com/rs/zerolog/log"
	ora "github.com/sijms/go-ora/v2"

	"github.com/reqvault/reqvault/internal/config"
	"github.com/reqvault/reqvault/internal/repository/oracle"
	"github.com/reqvault/reqvault/internal/repository/postgres"
	"github.com/reqvault/reqvault/internal/repository/sqlite"
)

// NewRepository builds the capture store selected by db.type.
func NewRepository(cfg *config.DBConfig) (CaptureRepository, error) {
	switch cfg.Type {
	case "postgres":
		log.Info().
			Str("type", "postgres").
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("Connecting to database")

		connStr := fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?pool_max_conns=%d&pool_min_conns=%d",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
			cfg.Pool.MaxConns, cfg.Pool.MinConns,
		)
		return postgres.NewPostgresRepository(connStr)

	case "oracle":
		log.Info().
			Str("type", "oracle").
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Msg("Connecting to database")

		connStr := ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, nil)
		return oracle.NewOracleRepository(connStr)

	case "sqlite":
		log.Info().
			Str("type", "sqlite").
			Str("path", cfg.Path).
			Msg("Opening database")

		return sqlite.NewSQLiteRepository(cfg.Path)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
