package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("lead not found")
)

// Config configures the lead store.
//
// Driver values:
//   - "memory": in-process map (default; useful for tests and dry runs)
//   - "sqlite": SQLite database file
//   - "bolt":   bbolt database file
//   - "redis":  redis server (Addr/Password/DB)
type Config struct {
	Driver      string
	Path        string
	Addr        string
	Password    string
	DB          int
	BusyTimeout time.Duration // sqlite only; 0 means default
}
