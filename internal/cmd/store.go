package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/guardianhq/guardian/internal/observability"
	"github.com/guardianhq/guardian/internal/store"
)

// openStore opens the configured audit database and brings its schema up
// to date.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("audit store unavailable: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit store migration failed: %w", err)
	}
	return db, nil
}

// withStore runs fn against an open audit store and closes it afterwards.
func withStore(ctx context.Context, fn func(*store.Store) error) error {
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && observability.CLILogger != nil {
			observability.CLILogger.Debug("Closing audit store failed", zap.Error(cerr))
		}
	}()
	return fn(db)
}
