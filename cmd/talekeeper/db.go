package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"talekeeper/internal/config"
	"talekeeper/internal/logging"
	"talekeeper/internal/persist"
	"talekeeper/internal/persist/postgres"
	"talekeeper/internal/persist/sqlite"
)

func loadConfig() (*config.Config, error) {
	return config.Load("talekeeper.yaml")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(os.Stderr, cfg.Logging)
}

// openDB selects the session backend by DSN scheme and ensures its schema.
func openDB(ctx context.Context, cfg *config.Config) (persist.Sessions, error) {
	dsn := cfg.Database.DSN

	var (
		db  persist.Sessions
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		db, err = sqlite.New(ctx, dsn)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn scheme: %s", dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}
