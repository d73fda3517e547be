package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/idexbot/internal/blob/s3"
	"github.com/alanyoungcy/idexbot/internal/cache/redis"
	"github.com/alanyoungcy/idexbot/internal/config"
	"github.com/alanyoungcy/idexbot/internal/crypto"
	"github.com/alanyoungcy/idexbot/internal/domain"
	"github.com/alanyoungcy/idexbot/internal/orderbook"
	"github.com/alanyoungcy/idexbot/internal/pipmath"
	"github.com/alanyoungcy/idexbot/internal/platform/idex"
	"github.com/alanyoungcy/idexbot/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Exchange clients
	Exchange *idex.RESTClient
	Stream   *idex.WSClient

	// Live book engine
	Books *orderbook.Client

	// Trading credentials (nil outside trade mode)
	Signer *crypto.Signer

	// Caches
	PriceCache domain.PriceCache

	// Persistence (nil outside record mode)
	UpdateStore domain.L1UpdateStore
	BlobWriter  domain.BlobWriter
	Archiver    *s3blob.Archiver
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	return mode == "record"
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "record"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Trading credentials (only for trade mode) ---
	var hmacAuth *crypto.HMACAuth
	if cfg.Mode == "trade" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		hmacAuth = &crypto.HMACAuth{
			Key:    cfg.Idex.ApiKey,
			Secret: cfg.Idex.ApiSecret,
		}
	}

	// --- Exchange clients ---
	deps.Exchange = idex.NewRESTClient(cfg.Idex.RestHost, deps.Signer, hmacAuth)
	deps.Stream = idex.NewWSClient(cfg.Idex.WsHost)

	// --- Live book engine ---
	increment, err := pipmath.DecimalToPip(cfg.OrderBook.PoolSlippageIncrement)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pool_slippage_increment: %w", err)
	}
	deps.Books = orderbook.NewClient(deps.Exchange, deps.Stream, orderbook.ClientConfig{
		NumPoolLevels:         cfg.OrderBook.NumPoolLevels,
		PoolSlippageIncrement: increment,
		SnapshotLimit:         cfg.OrderBook.SnapshotLimit,
	}, logger)

	// --- Redis ---
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
	deps.PriceCache = redis.NewPriceCache(redisClient)

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) {
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

		deps.UpdateStore = postgres.NewL1UpdateStore(pgClient.Pool())
	}

	// --- S3 blob storage (only for modes that need object storage) ---
	if needsS3(cfg.Mode) {
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
		if deps.UpdateStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.UpdateStore)
		}
	}

	return deps, cleanup, nil
}
