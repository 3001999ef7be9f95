package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/justestif/listify/internal/config"
	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/db/mongo"
	"github.com/justestif/listify/internal/db/postgres"
	"github.com/justestif/listify/internal/db/sqlite"
)

// openStore connects to the backend selected by cfg.Database.Driver.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (db.Store, error) {
	logger.Info("opening store", "driver", cfg.Database.Driver)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return store, nil
	case config.DriverMongo:
		store, err := mongo.New(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
