package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/journal"
)

var (
	_ journal.Storage = (*MemoryStorage)(nil)
	_ journal.Storage = (*SQLiteStorage)(nil)
)

// errUnknownBackend is returned by New for an unrecognized backend name.
var errUnknownBackend = errors.New("unknown journal backend")

// New creates the storage backend selected by cfg.Backend.
func New(cfg *config.JournalConfig, logger *slog.Logger) (journal.Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		sqliteCfg := DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.SQLitePath
		return NewSQLiteStorage(sqliteCfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, cfg.Backend)
	}
}
