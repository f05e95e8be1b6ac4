package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

var (
	bucketLeads    = []byte("leads")    // id -> lead JSON
	bucketKeys     = []byte("keys")     // identity key -> id
	bucketAnalyses = []byte("analyses") // id -> analysis JSON
)

type boltStore struct {
	db  *bolt.DB
	log logx.Logger
}

func openBolt(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketLeads, bucketKeys, bucketAnalyses} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, log: log}, nil
}

func (s *boltStore) Exists(ctx context.Context, identityKey string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketKeys).Get([]byte(identityKey)) != nil
		return nil
	})
	return found, err
}

func (s *boltStore) Put(ctx context.Context, l lead.Lead) (string, error) {
	l.EnsureID()
	if l.CollectedAt.IsZero() {
		l.CollectedAt = time.Now()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(l.IdentityKey())
		// An identity conflict updates the stored lead in place and
		// keeps its original id.
		if existing := tx.Bucket(bucketKeys).Get(key); existing != nil {
			l.ID = string(existing)
		}
		data, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketLeads).Put([]byte(l.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketKeys).Put(key, []byte(l.ID))
	})
	if err != nil {
		return "", err
	}
	return l.ID, nil
}

func (s *boltStore) AttachAnalysis(ctx context.Context, id string, a lead.Analysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketLeads).Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return tx.Bucket(bucketAnalyses).Put([]byte(id), data)
	})
}

func (s *boltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketLeads).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *boltStore) Close() error { return s.db.Close() }
