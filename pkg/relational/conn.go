// Package relational holds the billing pipeline's relational store access:
// a pooled Postgres connection sized to the worker's consumer count, and
// the two-table bulk writer that lands billing rows through it.
package relational

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config describes the billing store connection. PoolSize is the number of
// consumers sharing this process's pool: each bulk insert holds at most one
// connection, and a consumer never runs more than one bulk insert at a
// time, so consumer count is the natural pool bound.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	PoolSize        int           // default 4
	RecycleInterval time.Duration // connection max lifetime, default 10800s
}

// Connect opens the pooled billing store handle shared by every consumer
// in the worker process.
func Connect(cfg Config, log hclog.Logger) (*gorm.DB, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.RecycleInterval <= 0 {
		cfg.RecycleInterval = 10800 * time.Second
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: &queryLogger{logger: log.Named("gorm"), level: logger.Warn},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open billing store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.PoolSize)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetConnMaxLifetime(cfg.RecycleInterval)

	log.Info("connected to billing store",
		"host", cfg.Host,
		"database", cfg.DBName,
		"pool_size", cfg.PoolSize,
		"recycle_interval", cfg.RecycleInterval,
	)
	return db, nil
}

// slowQueryThreshold flags bulk inserts that take long enough to stall a
// consumer's poll loop.
const slowQueryThreshold = 200 * time.Millisecond

// queryLogger adapts hclog to gorm's logger.Interface. The bulk writer is
// the only query source, so failed and slow statements are all that gets
// surfaced; routine statement logging stays at Debug.
type queryLogger struct {
	logger hclog.Logger
	level  logger.LogLevel
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &queryLogger{logger: q.logger, level: level}
}

func (q *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= logger.Info {
		q.logger.Info(msg, data...)
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= logger.Warn {
		q.logger.Warn(msg, data...)
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if q.level >= logger.Error {
		q.logger.Error(msg, data...)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && q.level >= logger.Error:
		q.logger.Error("billing store query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > slowQueryThreshold && q.level >= logger.Warn:
		q.logger.Warn("slow billing store query", "elapsed", elapsed, "rows", rows, "sql", sql)
	default:
		q.logger.Debug("billing store query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
