package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arfaar/swapfinity/internal/config"
	"github.com/arfaar/swapfinity/internal/docstore"
)

func BuildDSN(cfg *config.Config) string {
	if cfg.StoreBackend == config.BackendPostgres {
		host := cfg.DBHost
		if cfg.InstanceConnectionName != "" {
			host = "/cloudsql/" + cfg.InstanceConnectionName
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			host, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	}

	addr := cfg.DBHost
	// Prefer Cloud SQL unix socket when INSTANCE_CONNECTION_NAME is provided.
	switch {
	case cfg.InstanceConnectionName != "":
		addr = fmt.Sprintf("unix(/cloudsql/%s)", cfg.InstanceConnectionName)
	case strings.HasPrefix(cfg.DBHost, "tcp("), strings.HasPrefix(cfg.DBHost, "unix("):
	case strings.HasPrefix(cfg.DBHost, "/"):
		addr = fmt.Sprintf("unix(%s)", cfg.DBHost)
	default:
		addr = fmt.Sprintf("tcp(%s:%s)", cfg.DBHost, cfg.DBPort)
	}
	// Times are stored in UTC; documents carry their own encoded timestamps.
	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DBUser, cfg.DBPassword, addr, cfg.DBName)
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)
	gcfg := &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	var dialector gorm.Dialector
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		dialector = postgres.Open(dsn)
	default:
		dialector = mysql.Open(dsn)
	}
	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)

	return db, nil
}

// OpenStore builds the document store selected by STORE_BACKEND, wrapped in
// the retrying decorator.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App, log *slog.Logger) (docstore.Store, error) {
	var (
		store docstore.Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		store, err = openFirestore(ctx, app)
	case config.BackendMySQL, config.BackendPostgres:
		store, err = openSQL(ctx, cfg, log)
	case config.BackendMemory:
		log.Warn("using in-memory store; data is lost on restart")
		store = docstore.NewMemoryStore()
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	log.Info("document store ready", "backend", cfg.StoreBackend)
	return docstore.WithRetry(store, docstore.RetryConfig{
		Timeout:    cfg.StoreTimeout,
		MaxRetries: cfg.StoreRetries,
	}, log), nil
}

func openFirestore(ctx context.Context, app *firebase.App) (docstore.Store, error) {
	if app == nil {
		return nil, fmt.Errorf("firestore backend requires a firebase app")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return docstore.NewFirestoreStore(client), nil
}

func openSQL(ctx context.Context, cfg *config.Config, log *slog.Logger) (docstore.Store, error) {
	gdb, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.StoreBackend, err)
	}

	var notifier docstore.Notifier
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		notifier = docstore.NewRedisNotifier(rdb)
	} else {
		log.Info("REDIS_ADDR not set; change notifications stay in this process")
		notifier = docstore.NewLocalNotifier()
	}

	store := docstore.NewSQLStore(gdb, notifier, log)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}
