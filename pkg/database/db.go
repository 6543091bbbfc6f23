// Package database opens the datastore selected by DB_DRIVER: a MongoDB
// database for "mongo" or a gorm handle for the SQL drivers.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/config"
)

// Pool sizes the SQL connection pool.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	SlowQuery   time.Duration
}

// PoolFromConfig reads DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_SLOW_QUERY.
func PoolFromConfig() Pool {
	return Pool{
		MaxOpen:     config.Int("DB_MAX_OPEN_CONNS", 25),
		MaxIdle:     config.Int("DB_MAX_IDLE_CONNS", 10),
		MaxLifetime: config.Duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		SlowQuery:   config.Duration("DB_SLOW_QUERY", 200*time.Millisecond),
	}
}

var dialectors = map[string]func(dsn string) gorm.Dialector{
	"sqlite":    sqlite.Open,
	"postgres":  postgres.Open,
	"mysql":     mysql.Open,
	"sqlserver": sqlserver.Open,
}

// ConnectSQL opens driver with the pool from config and checks the server
// answers.
func ConnectSQL(driver, dsn string) (*gorm.DB, error) {
	return OpenSQL(driver, dsn, PoolFromConfig())
}

func OpenSQL(driver, dsn string, pool Pool) (*gorm.DB, error) {
	open, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("database: unsupported DB_DRIVER %q", driver)
	}
	db, err := gorm.Open(open(dsn), &gorm.Config{
		Logger:         newQueryLogger(pool.SlowQuery),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one writer at a time, or "database is locked"
		pool.MaxOpen, pool.MaxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(min(pool.MaxIdle, pool.MaxOpen))
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}
	return db, nil
}

// ConnectMongo connects to uri and returns the named database.
func ConnectMongo(ctx context.Context, uri, name string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetAppName(config.AppName()).
		SetMaxPoolSize(uint64(max(config.Int("DB_MAX_OPEN_CONNS", 50), 1))).
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("database: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("database: mongo ping: %w", err)
	}
	return client.Database(name), nil
}

// PingSQL returns a health check for db.
func PingSQL(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func PingMongo(db *mongo.Database) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.Client().Ping(ctx, readpref.Primary())
	}
}
