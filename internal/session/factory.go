package session

import (
	"context"
	"fmt"

	"github.com/Uni298/OSMStudio/internal/config"
)

// NewStore creates a session store based on configuration.
func NewStore(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite session store: %w", err)
		}
		return NewGormStore(db)
	case "postgres":
		db, err := OpenPostgres(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("open postgres session store: %w", err)
		}
		return NewGormStore(db)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Store)
	}
}
