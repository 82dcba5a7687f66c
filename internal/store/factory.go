package store

import (
	"context"
	"fmt"

	"basegraph.app/storepilot/common/arangodb"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/core/db"
)

// Open returns the CycleStore selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (CycleStore, error) {
	switch cfg.Backend {
	case config.StorageFile, "":
		return NewFileStore(cfg.DataDir)

	case config.StorageArango:
		client, err := arangodb.New(ctx, arangodb.Config{
			URL:      cfg.ArangoDB.URL,
			Username: cfg.ArangoDB.Username,
			Password: cfg.ArangoDB.Password,
			Database: cfg.ArangoDB.Database,
		})
		if err != nil {
			return nil, err
		}
		return NewArangoStore(ctx, client)

	case config.StoragePostgres:
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return NewPostgresStore(database), nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
