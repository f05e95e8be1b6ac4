package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	logx "leadgen/pkg/logx"

	"leadgen/internal/lead"
)

const (
	redisLeadPrefix     = "leadgen:lead:"
	redisKeyPrefix      = "leadgen:key:"
	redisAnalysisPrefix = "leadgen:analysis:"
	redisCountKey       = "leadgen:count"
)

type redisStore struct {
	client *redis.Client
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisStore{client: client, log: log}, nil
}

func (s *redisStore) Exists(ctx context.Context, identityKey string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+identityKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Put(ctx context.Context, l lead.Lead) (string, error) {
	l.EnsureID()
	if l.CollectedAt.IsZero() {
		l.CollectedAt = time.Now()
	}
	// An identity conflict updates the stored lead in place and keeps
	// its original id; only genuinely new leads bump the counter.
	key := redisKeyPrefix + l.IdentityKey()
	existing, err := s.client.Get(ctx, key).Result()
	known := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if known {
		l.ID = existing
	}

	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisLeadPrefix+l.ID, data, 0)
	pipe.Set(ctx, key, l.ID, 0)
	if !known {
		pipe.Incr(ctx, redisCountKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return l.ID, nil
}

func (s *redisStore) AttachAnalysis(ctx context.Context, id string, a lead.Analysis) error {
	n, err := s.client.Exists(ctx, redisLeadPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisAnalysisPrefix+id, data, 0).Err()
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Get(ctx, redisCountKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *redisStore) Close() error { return s.client.Close() }
