package storage

import (
	"context"
	"errors"
	"strings"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

// Store is the dedup/persistence contract the engine's task closure uses.
//
// Exists must not error for "not found", only for genuine I/O failure.
type Store interface {
	Exists(ctx context.Context, identityKey string) (bool, error)
	Put(ctx context.Context, l lead.Lead) (id string, err error)
	AttachAnalysis(ctx context.Context, id string, a lead.Analysis) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "bolt", "bbolt":
		return openBolt(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
