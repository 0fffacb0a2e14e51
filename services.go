package main

import (
	"context"

	"sjsage522/communitysync/config"
	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/internal/notion"
	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/pkg/errors"
	"sjsage522/communitysync/services/cache"
	"sjsage522/communitysync/services/publisher"
)

// Services holds the optional backing services of a run
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices connects to memcache and, when publishing, to redis.
// Both are optional: an unreachable memcache only disables the page cache,
// an unreachable redis fails the run because publishing was asked for.
func initializeServices(ctx context.Context, cfg *config.Config, publish bool) (*Services, error) {
	log := logger.ForPipeline()
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, page cache disabled")
		} else {
			services.Cache = cacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if publish {
		if cfg.RedisAddr == "" {
			return nil, errors.NewConfiguration("REDIS_ADDR is required to publish records", nil)
		}
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}

func newFetcher(cfg *config.Config, pageCache cache.CacheService) *helpers.Fetcher {
	return helpers.NewFetcher(helpers.FetcherOptions{
		Timeout:   cfg.RequestTimeout,
		ForceUTF8: cfg.ForceUTF8,
		Cache:     pageCache,
		CacheTTL:  cfg.PageCacheTTL,
		Retry:     retryPolicy(cfg),
	})
}

func newNotionClient(cfg *config.Config) *notion.Client {
	return notion.NewClient(notion.ClientOptions{
		BaseURL: cfg.NotionBaseURL,
		Token:   cfg.NotionToken,
		Version: cfg.NotionVersion,
		Timeout: cfg.RequestTimeout,
		Retry:   retryPolicy(cfg),
	})
}

func retryPolicy(cfg *config.Config) helpers.RetryPolicy {
	return helpers.RetryPolicy{
		Attempts: cfg.MaxRetries,
		Backoff:  cfg.RetryBackoff,
	}
}
