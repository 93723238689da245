package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"greenchain-insights/models"
)

const reportKeyPrefix = "report:"

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisClient caches the latest pipeline report per source.
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisClient(ctx context.Context, opts Options, log *zap.Logger) (*RedisClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	log.Info("connected to redis", zap.String("addr", opts.Addr), zap.Duration("ttl", ttl))
	return &RedisClient{client: rdb, ttl: ttl, log: log}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func ReportKey(sourceID string) string {
	return reportKeyPrefix + sourceID
}

func (rc *RedisClient) SaveReport(ctx context.Context, sourceID string, report *models.PipelineResponse) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := rc.client.Set(ctx, ReportKey(sourceID), data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	rc.log.Debug("report cached", zap.String("source_id", sourceID))
	return nil
}

// GetReport returns nil, nil when no report is cached for the source.
func (rc *RedisClient) GetReport(ctx context.Context, sourceID string) (*models.PipelineResponse, error) {
	val, err := rc.client.Get(ctx, ReportKey(sourceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached report: %w", err)
	}

	var report models.PipelineResponse
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}
