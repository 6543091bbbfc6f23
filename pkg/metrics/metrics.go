// Package metrics holds the storefront's Prometheus collectors. Everything
// registers on Registry, which Handler serves on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// Registry is private to the storefront so tests and embedded servers do
// not collide with prometheus.DefaultRegisterer.
var Registry = func() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}()

var factory = promauto.With(Registry)

// MustRegister adds collectors owned by other packages, such as the gRPC
// interceptors.
func MustRegister(c ...prometheus.Collector) { Registry.MustRegister(c...) }

var (
	RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http",
		Name:    "request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route", "status"})

	RequestTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	RequestInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "requests_in_flight",
		Help: "HTTP requests being served.",
	})

	ResponseSize = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http",
		Name:    "response_size_bytes",
		Help:    "Response body size by route.",
		Buckets: prometheus.ExponentialBuckets(128, 8, 6),
	}, []string{"method", "route"})

	PanicsRecovered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http",
		Name: "panics_recovered_total",
		Help: "Handler panics turned into 500 responses.",
	})
)

var (
	DBQueryDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "db",
		Name:    "query_duration_seconds",
		Help:    "Repository call latency by collection and operation.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .5, 1},
	}, []string{"collection", "operation"})

	CacheHits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache",
		Name: "hits_total",
		Help: "Cache hits by driver.",
	}, []string{"driver"})

	CacheMisses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "cache",
		Name: "misses_total",
		Help: "Cache misses by driver.",
	}, []string{"driver"})

	QueueJobsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue",
		Name: "jobs_processed_total",
		Help: "Queue jobs by outcome.",
	}, []string{"status"})

	QueueJobDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "queue",
		Name:    "job_duration_seconds",
		Help:    "Queue job run time by job type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_type"})
)

var (
	OrdersPlaced = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders",
		Name: "placed_total",
		Help: "Orders persisted.",
	})

	// reason is not_found, insufficient_stock or persist.
	OrderRejections = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders",
		Name: "rejected_total",
		Help: "Order placements rejected, by reason.",
	}, []string{"reason"})

	StockCompensations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "orders",
		Name: "stock_compensations_total",
		Help: "Stock decrements restored after a failed placement.",
	})

	CSVRowsExported = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "reports",
		Name: "csv_rows_exported_total",
		Help: "Order rows written to CSV exports.",
	})

	LowStockProducts = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "catalog",
		Name: "low_stock_products",
		Help: "Active products at or below the low-stock threshold at the last scan.",
	})
)

// ObserveDBQuery is meant for defer:
//
//	defer metrics.ObserveDBQuery("orders", "insert", time.Now())
func ObserveDBQuery(collection, operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
}

func RecordQueueJob(jobType, status string, start time.Time) {
	QueueJobsProcessed.WithLabelValues(status).Inc()
	QueueJobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
}
