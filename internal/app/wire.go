package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/oddslab/syntharb/internal/blob/s3"
	"github.com/oddslab/syntharb/internal/cache/redis"
	"github.com/oddslab/syntharb/internal/config"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/notify"
	"github.com/oddslab/syntharb/internal/store/postgres"
)

// Dependencies bundles the external collaborators the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	RelationshipStore domain.RelationshipStore
	OpportunityStore  domain.OpportunityStore

	// Caches and bus
	OddsCache domain.OddsCache
	SignalBus domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that persist fits and detections.
func needsPostgres(mode string) bool {
	switch mode {
	case "detect", "refit", "monitor", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that archive aged detections.
func needsS3(mode string, cfg *config.Config) bool {
	if !cfg.Archive.Enabled {
		return false
	}
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RelationshipStore = postgres.NewRelationshipStore(pool)
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
	}

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

	deps.OddsCache = redis.NewOddsCache(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if needsS3(cfg.Mode, cfg) {
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

		writer := s3blob.NewWriter(s3Client)
		deps.BlobWriter = writer
		deps.BlobReader = writer
		if deps.OpportunityStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.OpportunityStore, writer, cfg.Archive.BatchLimit, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
