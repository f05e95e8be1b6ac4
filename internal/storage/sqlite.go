package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Exists(ctx context.Context, identityKey string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM leads WHERE identity_key = ?`, identityKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) Put(ctx context.Context, l lead.Lead) (string, error) {
	l.EnsureID()
	if l.CollectedAt.IsZero() {
		l.CollectedAt = time.Now()
	}
	// On identity conflict the stored row keeps its original id; RETURNING
	// hands that id back so follow-up writes land on the right row.
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO leads(id, identity_key, name, address, website, email, phone, location, category, completeness, collected_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(identity_key) DO UPDATE SET
		   website=excluded.website, email=excluded.email, phone=excluded.phone,
		   completeness=excluded.completeness
		 RETURNING id`,
		l.ID, l.IdentityKey(), l.Name, nullStr(l.Address), nullStr(l.Website),
		nullStr(l.Email), nullStr(l.Phone), nullStr(l.Location), nullStr(l.Category),
		l.Completeness, l.CollectedAt.Format(time.RFC3339Nano),
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqliteStore) AttachAnalysis(ctx context.Context, id string, a lead.Analysis) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses(lead_id, reachable, status_code, latency_ms, analyzed_at, err)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(lead_id) DO UPDATE SET
		   reachable=excluded.reachable, status_code=excluded.status_code,
		   latency_ms=excluded.latency_ms, analyzed_at=excluded.analyzed_at, err=excluded.err`,
		id, boolInt(a.Reachable), a.StatusCode, a.Latency.Milliseconds(),
		a.AnalyzedAt.Format(time.RFC3339Nano), nullStr(a.Error),
	)
	return err
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n)
	return n, err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
