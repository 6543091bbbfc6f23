// Package bootstrap wires config, datastore, cache, queue and services into
// one App. The CLI, the server and the API tests all start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/jobs"
	"github.com/shashiranjanraj/storefront/app/listeners"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/app/tasks"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/notification"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"github.com/shashiranjanraj/storefront/pkg/schedule"
	"github.com/shashiranjanraj/storefront/pkg/storage"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
	"github.com/shashiranjanraj/storefront/pkg/ws"
)

// Options are the collaborators New cannot derive from the store.
// Zero values select in-process defaults.
type Options struct {
	Cache             cache.Store
	CacheTTL          time.Duration
	QueueDriver       queue.Driver
	FailedJobs        queue.FailedLedger
	Archive           storage.Disk
	Mailer            mail.Mailer
	SlackWebhook      string
	StockPolicy       string
	LowStockThreshold int
	Workers           int
}

// App is a fully wired storefront.
type App struct {
	Store     *repositories.Store
	SQL       *gorm.DB // nil unless DB_DRIVER is a SQL driver
	Cache     cache.Store
	Events    *event.Bus
	Queue     *queue.Manager
	Hub       *ws.Hub
	Scheduler *schedule.Scheduler
	Pool      *workerpool.Pool

	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Reports  *services.ReportService
	Importer *services.ImportService

	workers     int
	queueDriver queue.Driver
	closers     []func(context.Context) error
}

// New wires the services over store.
func New(store *repositories.Store, opts Options) *App {
	if opts.QueueDriver == nil {
		opts.QueueDriver = queue.NewMemoryDriver()
	}
	if opts.Mailer == nil {
		opts.Mailer = mail.LogMailer{}
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 5
	}

	a := &App{
		Store:     store,
		Cache:     opts.Cache,
		Events:    event.New(),
		Queue:     queue.New(opts.QueueDriver),
		Hub:       ws.NewHub(),
		Scheduler: schedule.New(),
		Pool:      workerpool.New("archive", 2, 16),

		workers:     opts.Workers,
		queueDriver: opts.QueueDriver,
	}
	if opts.FailedJobs != nil {
		a.Queue.UseLedger(opts.FailedJobs)
	}

	a.Auth = services.NewAuthService(store.Users)
	a.Catalog = services.NewCatalogService(store.Products, opts.Cache, opts.CacheTTL)
	a.Orders = services.NewOrderService(store, a.Catalog, a.Events, opts.StockPolicy)
	a.Reports = services.NewReportService(store, opts.Archive, a.Pool)
	a.Importer = services.NewImportService(a.Catalog)

	jobs.Register(a.Queue, notification.New(opts.Mailer, opts.SlackWebhook))
	listeners.Register(a.Events, a.Queue, a.Hub)
	tasks.Register(a.Scheduler, a.Catalog, opts.LowStockThreshold)
	if m, ok := opts.Cache.(*cache.MemoryStore); ok {
		a.Scheduler.Every(15*time.Minute).Name("cache:sweep").Run(func(context.Context) error {
			m.Sweep()
			return nil
		})
	}
	return a
}

// FromConfig opens everything the environment names and wires it.
func FromConfig(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var closers []func(context.Context) error
	if config.Bool("LOG_MONGO", false) {
		h, err := logger.NewMongoHandler(ctx, config.MongoURI(), config.MongoDatabase(), "logs",
			config.Duration("LOG_RETENTION", 7*24*time.Hour))
		if err != nil {
			logger.Warn("mongo log sink disabled", "error", err)
		} else {
			logger.Use(h)
			closers = append(closers, h.Close)
		}
	}

	store, sqlDB, err := OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := Options{
		CacheTTL:          config.CacheTTL(),
		Mailer:            mail.NewFromConfig(),
		SlackWebhook:      config.Get("SLACK_WEBHOOK_URL", ""),
		StockPolicy:       config.OrderStockPolicy(),
		LowStockThreshold: config.LowStockThreshold(),
		Workers:           config.QueueWorkers(),
	}

	var redisStore *cache.RedisStore
	redisClient := func() (*cache.RedisStore, error) {
		if redisStore != nil {
			return redisStore, nil
		}
		rs, err := cache.NewRedis(config.RedisAddr(), config.RedisPassword())
		if err != nil {
			return nil, err
		}
		redisStore = rs
		closers = append(closers, func(context.Context) error { return rs.Close() })
		return rs, nil
	}

	switch config.Get("CACHE_DRIVER", "memory") {
	case "redis":
		rs, err := redisClient()
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		opts.Cache = rs
	case "none":
	default:
		opts.Cache = cache.NewMemory()
	}

	if config.QueueDriver() == "redis" {
		rs, err := redisClient()
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}
		opts.QueueDriver = queue.NewRedisDriver(rs.Client(), strings.ToLower(config.AppName()))
	}

	if sqlDB != nil {
		ledger, err := queue.NewGormLedger(sqlDB)
		if err != nil {
			return nil, err
		}
		opts.FailedJobs = ledger
	}

	if name := config.ExportDisk(); name != "" {
		disk, err := storage.NewManager().Disk(name)
		if err != nil {
			return nil, err
		}
		opts.Archive = disk
	}

	a := New(store, opts)
	a.SQL = sqlDB
	a.closers = append(a.closers, closers...)
	return a, nil
}

// OpenStore connects to the datastore named by DB_DRIVER. The gorm handle
// is returned for SQL drivers so migrations can run against it.
func OpenStore(ctx context.Context) (*repositories.Store, *gorm.DB, error) {
	switch driver := config.DatabaseDriver(); driver {
	case "memory":
		return repositories.NewMemoryStore(), nil, nil
	case "mongo":
		db, err := database.ConnectMongo(ctx, config.MongoURI(), config.MongoDatabase())
		if err != nil {
			return nil, nil, err
		}
		store, err := repositories.NewMongoStore(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		return store, nil, nil
	default:
		db, err := database.ConnectSQL(driver, config.DatabaseDSN())
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewSQLStore(db, driver), db, nil
	}
}

// Start runs the in-process background machinery until ctx is done: the
// websocket hub, queue workers (when workers > 0) and the scheduler.
func (a *App) Start(ctx context.Context) {
	go a.Hub.Run(ctx)
	if a.workers > 0 {
		a.RunWorkers(ctx, a.workers)
	} else if d, ok := a.queueDriver.(*queue.RedisDriver); ok {
		go d.Run(ctx)
	}
	a.Scheduler.Start(ctx)
}

// RunWorkers consumes the queue with n workers until ctx is done. The Redis
// driver's delayed-job mover runs alongside them.
func (a *App) RunWorkers(ctx context.Context, n int) {
	if d, ok := a.queueDriver.(*queue.RedisDriver); ok {
		go d.Run(ctx)
	}
	a.Queue.StartWorkers(ctx, n)
}

// QueueDriverName reports "redis" or "memory".
func (a *App) QueueDriverName() string {
	if _, ok := a.queueDriver.(*queue.RedisDriver); ok {
		return "redis"
	}
	return "memory"
}

// Close drains async work and releases connections. ctx bounds the wait.
func (a *App) Close(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		a.Events.Wait()
		_ = a.Pool.Shutdown(ctx)
		a.Queue.Wait()
		a.Scheduler.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("shutdown: background work still running")
	}

	errs := []error{a.Store.Close(ctx)}
	for _, c := range a.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}
