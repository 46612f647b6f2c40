package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ingest"

// Run holds the collectors for one ingestion run on a private registry.
type Run struct {
	registry   *prometheus.Registry
	processed  prometheus.Counter
	failed     prometheus.Counter
	duration   prometheus.Histogram
	deleted    prometheus.Counter
	lastRun    prometheus.Gauge
	throughput prometheus.Gauge
}

// NewRun registers a fresh set of run collectors.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry: reg,
		processed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Images ingested successfully.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Images that failed ingestion.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent ingesting a single image.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		deleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_deleted_total",
			Help:      "Catalog rows removed by reconciliation.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_items_per_second",
			Help:      "Items per second over the run so far.",
		}),
	}
}

// ObserveItem records one finished item.
func (r *Run) ObserveItem(d time.Duration, err error) {
	r.duration.Observe(d.Seconds())
	if err != nil {
		r.failed.Inc()
		return
	}
	r.processed.Inc()
}

// SetThroughput records the current rate.
func (r *Run) SetThroughput(perSecond float64) {
	r.throughput.Set(perSecond)
}

// ObserveReconcile records rows removed by reconciliation.
func (r *Run) ObserveReconcile(deleted int) {
	r.deleted.Add(float64(deleted))
}

// Finish stamps the completion time.
func (r *Run) Finish(at time.Time) {
	r.lastRun.Set(float64(at.Unix()))
}

// Gatherer exposes the run registry.
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the run metrics in the node-exporter textfile format.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the run metrics to a Pushgateway.
func (r *Run) Push(url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string, gatherer prometheus.Gatherer) {
	router.GET(path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
