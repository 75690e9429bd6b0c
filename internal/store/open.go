package store

import (
	"fmt"

	"github.com/stellarlinkco/ragate/internal/config"
)

// Open constructs a Store from configuration. An empty or "sqlite" type
// opens the configured file; "memory" opens an in-process database that
// vanishes on Close.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: nil config")
	}

	switch cfg.Storage.Type {
	case "", "sqlite":
		path := cfg.Storage.Path
		if path == "" {
			path = "data/ragate.db"
		}
		return NewSQLiteStore(path)
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("store: unknown storage type %q", cfg.Storage.Type)
	}
}
