package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/anatraz/limsbridge/common/cache"
	"github.com/anatraz/limsbridge/common/config"
	"github.com/anatraz/limsbridge/common/db"
	"github.com/anatraz/limsbridge/common/logger"
	"github.com/anatraz/limsbridge/common/metrics"
	"github.com/anatraz/limsbridge/common/queue"
	"github.com/anatraz/limsbridge/common/redis"
)

// Setup initializes all service components.
// This is the main entry point for the service.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})
	}

	// 4. Initialize queue
	if !options.skipQueue {
		components.Logger.Info("initializing queue", "size", components.Config.HL7.QueueSize)
		components.Queue = queue.NewMemoryQueue(components.Config.HL7.QueueSize, components.Logger)

		components.addCleanup(func() error {
			return components.Queue.Close()
		})
	}

	// 5. Initialize cache
	if !options.skipCache {
		components.Cache = cache.NewMemoryCache(components.Logger)

		components.addCleanup(func() error {
			return components.Cache.Close()
		})
	}

	// 6. Initialize Redis
	if !options.skipRedis && components.Config.Redis.Enabled {
		components.Logger.Info("connecting to redis", "addr", components.Config.RedisAddr())

		client := goredis.NewClient(&goredis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})
		components.Redis = redis.NewClient(client, components.Logger)

		if err := components.Redis.Health(ctx); err != nil {
			// Redis only backs lookup caches; start degraded rather than fail
			components.Logger.Warn("redis unavailable, continuing without cache", "error", err)
			components.Redis = nil
		} else {
			components.addCleanup(func() error {
				return components.Redis.Close()
			})
		}
	}

	// 7. Initialize metrics
	components.Metrics = metrics.New(serviceName)

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"queue", components.Queue != nil,
		"redis", components.Redis != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
