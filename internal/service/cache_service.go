package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached read models.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService keeps short-lived read models such as queue snapshots.
// Cache faults never reach callers: they are logged and read as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. A disabled service never hits.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled && repo != nil}
}

// Fetch fills dest from the cache and reports whether it did.
func (s *CacheService) Fetch(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || !s.enabled {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !appErrors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Store saves value under key; a non-positive ttl uses the default.
func (s *CacheService) Store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s == nil || !s.enabled {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Evict drops every entry matching pattern.
func (s *CacheService) Evict(ctx context.Context, pattern string) {
	if s == nil || !s.enabled {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache eviction failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
