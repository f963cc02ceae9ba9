package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/gridironmarkets/gridiron/internal/blob/s3"
	"github.com/gridironmarkets/gridiron/internal/cache/redis"
	"github.com/gridironmarkets/gridiron/internal/config"
	"github.com/gridironmarkets/gridiron/internal/domain"
	"github.com/gridironmarkets/gridiron/internal/server/ws"
	"github.com/gridironmarkets/gridiron/internal/store/postgres"
)

// Dependencies bundles the infrastructure the services need. Every field is
// optional; the services degrade to engine-only operation when a field is
// nil. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	OrderStore  domain.OrderStore
	FillStore   domain.FillStore
	AuditStore  domain.AuditStore

	// Caches and coordination
	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Event fan-out. Bus is what the services publish to; Relay is set when
	// a shared broker carries events between instances, and feeds the local
	// WebSocket hub.
	Bus   domain.EventBus
	Relay ws.Subscriber

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.SettlementArchiver
	Reports    domain.SettlementReader
}

// Wire constructs concrete dependency implementations from the configuration
// and returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.OrderStore = postgres.NewOrderStore(pool)
		deps.FillStore = postgres.NewFillStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		logger.InfoContext(ctx, "postgres stores wired")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewBookCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)

		// With a shared broker the services publish to Redis and every
		// instance's hub relays from it. Without one the hub itself is the
		// bus (set in Serve).
		bus := redis.NewEventBus(redisClient)
		deps.Bus = bus
		deps.Relay = bus
		logger.InfoContext(ctx, "redis cache, locks, and event bus wired")
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		archiver := s3blob.NewArchiver(deps.BlobWriter, s3blob.NewReader(s3Client), deps.AuditStore)
		deps.Archiver = archiver
		deps.Reports = archiver
		logger.InfoContext(ctx, "s3 settlement archive wired",
			slog.String("bucket", cfg.S3.Bucket))
	}

	return deps, cleanup, nil
}
