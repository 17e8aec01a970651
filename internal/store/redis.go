package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	lastRunKey   = "leadsync:last_run"
	runKeyPrefix = "leadsync:run:"
	runReportTTL = 7 * 24 * time.Hour
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// SaveRunReport stores the report under its run id and as the latest run.
func (s *RedisStore) SaveRunReport(ctx context.Context, report domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, lastRunKey, data, 0)
	if report.RunID != "" {
		pipe.Set(ctx, runKeyPrefix+report.RunID, data, runReportTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving run report: %w", err)
	}
	return nil
}

// LastRunReport returns the most recently saved report, or nil if none.
func (s *RedisStore) LastRunReport(ctx context.Context) (*domain.RunReport, error) {
	return s.loadReport(ctx, lastRunKey)
}

// RunReport returns the report of one run, or nil if unknown or expired.
func (s *RedisStore) RunReport(ctx context.Context, runID string) (*domain.RunReport, error) {
	return s.loadReport(ctx, runKeyPrefix+runID)
}

func (s *RedisStore) loadReport(ctx context.Context, key string) (*domain.RunReport, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading run report: %w", err)
	}

	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshaling run report: %w", err)
	}
	return &report, nil
}
