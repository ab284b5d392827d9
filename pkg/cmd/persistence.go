package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/persistence/file"
	"github.com/flowhive/flowhive/pkg/persistence/postgresql"
)

// NewPersistence creates the durable store for the given database URL.
// postgres:// URLs use PostgreSQL; anything else is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return store
	default:
		store, err := file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
		if err != nil {
			panic(err)
		}

		return store
	}
}
