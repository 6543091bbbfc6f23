//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/database"
)

// Run with: go test -tags integration ./app/repositories/...
// One container per driver is shared by the package; every store gets its
// own database inside it.

func init() {
	extraBackends = append(extraBackends, mongoBackend, postgresBackend)
}

var (
	mongoOnce sync.Once
	mongoURI  string
	mongoErr  error

	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

func mongoBackend(t *testing.T) (string, *repositories.Store) {
	t.Helper()
	ctx := context.Background()
	mongoOnce.Do(func() {
		c, err := tcmongo.Run(ctx, "mongo:7")
		if err != nil {
			mongoErr = err
			return
		}
		mongoURI, mongoErr = c.ConnectionString(ctx)
	})
	require.NoError(t, mongoErr, "start mongo container")

	db, err := database.ConnectMongo(ctx, mongoURI, "storefront_"+primitive.NewObjectID().Hex())
	require.NoError(t, err)
	store, err := repositories.NewMongoStore(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return "mongo", store
}

func postgresBackend(t *testing.T) (string, *repositories.Store) {
	t.Helper()
	ctx := context.Background()
	pgOnce.Do(func() {
		c, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("storefront"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("secret"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			pgErr = err
			return
		}
		pgDSN, pgErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, pgErr, "start postgres container")

	admin, err := database.ConnectSQL("postgres", pgDSN)
	require.NoError(t, err)
	name := "store_" + primitive.NewObjectID().Hex()
	require.NoError(t, admin.Exec(fmt.Sprintf("CREATE DATABASE %s", name)).Error)
	if sqlDB, err := admin.DB(); err == nil {
		_ = sqlDB.Close()
	}

	db, err := database.ConnectSQL("postgres", strings.Replace(pgDSN, "/storefront?", "/"+name+"?", 1))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repositories.UserRow{}, &repositories.ProductRow{}, &repositories.OrderRow{}))

	store := repositories.NewSQLStore(db, "postgres")
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return "postgres", store
}
