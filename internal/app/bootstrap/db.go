// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/divehub/internal/app/store/accessrequests"
	"github.com/dalemusser/divehub/internal/app/store/accounts"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/store/pgstore"
	"github.com/dalemusser/divehub/internal/app/system/indexes"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the configured store backend and, for the redis lockout
// backend, the Redis client. Store timeouts are configured here since this
// is the first hook that talks to a backend.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	deps := DBDeps{Runtime: &Runtime{}}

	switch appCfg.StoreBackend {
	case BackendPostgres:
		cctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		db, err := pgstore.Open(cctx, appCfg.PostgresDSN, appCfg.PostgresMaxOpen)
		cancel()
		if err != nil {
			return DBDeps{}, err
		}
		deps.SQL = db
		deps.Accounts = pgstore.NewAccountStore(db)
		deps.Requests = pgstore.NewRequestStore(db)
		deps.Audit = pgstore.NewAuditStore(db)
		logger.Info("connected to PostgreSQL")
	default:
		client, err := connectMongo(ctx, appCfg)
		if err != nil {
			return DBDeps{}, err
		}
		db := client.Database(appCfg.MongoDatabase)
		deps.MongoClient = client
		deps.MongoDatabase = db
		deps.Accounts = accounts.New(db)
		deps.Requests = accessrequests.New(db)
		deps.Audit = audit.New(db)
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	}

	if appCfg.LockoutBackend == LockoutRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return DBDeps{}, errors.Join(fmt.Errorf("redis ping: %w", err), closeStores(ctx, deps))
		}
		deps.Redis = rdb
		logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
	}

	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureSchema applies migrations (PostgreSQL) or validators and indexes
// (MongoDB), then folds legacy "active" statuses into approved.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "ensure schema")
	defer cancel()

	if deps.SQL != nil {
		if err := pgstore.Migrate(ctx, deps.SQL, logger); err != nil {
			return err
		}
		if v, err := pgstore.Version(ctx, deps.SQL); err == nil {
			logger.Info("postgres schema ready", zap.Int64("version", v))
		}
	}
	if deps.MongoDatabase != nil {
		if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
			return fmt.Errorf("ensure validators: %w", err)
		}
		if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}

	n, err := MigrateStatuses(ctx, deps)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("migrated legacy account statuses", zap.Int64("count", n))
	}
	return nil
}

// MigrateStatuses rewrites legacy "active" rows to approved and returns how
// many changed.
func MigrateStatuses(ctx context.Context, deps DBDeps) (int64, error) {
	n, err := deps.Accounts.NormalizeLegacyStatuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("normalize legacy statuses: %w", err)
	}
	return n, nil
}
