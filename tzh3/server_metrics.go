package tzh3

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "tzh3",
	Name:      "buildinfo",
}, []string{"version", "revision"})

var buildTimeMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "tzh3",
	Name:      "buildtime",
})

func init() {
	err := prometheus.Register(buildInfoMetric)
	if err != nil {
		fmt.Println("Error registering metric", err)
	}
	err = prometheus.Register(buildTimeMetric)
	if err != nil {
		fmt.Println("Error registering metric", err)
	}
}

// SetBuildInfo initializes static metrics with tzh3 version, git hash, and build time
func SetBuildInfo(version, commit, date string) {
	buildInfoMetric.WithLabelValues(version, commit).Set(1)
	time, err := time.Parse(time.RFC3339, date)
	if err == nil {
		buildTimeMetric.Set(float64(time.Unix()))
	} else {
		buildTimeMetric.Set(0)
	}
}

type metrics struct {
	// overall requests: # requests, request duration, response size by handler/status code
	requests        *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec
	requestDuration *prometheus.HistogramVec
	// lookups by outcome and the resolution the match was stored at
	lookups          *prometheus.CounterVec
	lookupResolution prometheus.Histogram
	// loaded index
	indexCells prometheus.Gauge
	indexZones prometheus.Gauge
	// fetches from the bucket: # total, duration by status
	bucketRequests        *prometheus.CounterVec
	bucketRequestDuration *prometheus.HistogramVec
	reloads               prometheus.Counter
}

// utility to time an overall request
type requestTracker struct {
	finished bool
	start    time.Time
	metrics  *metrics
}

func (m *metrics) startRequest() *requestTracker {
	return &requestTracker{start: time.Now(), metrics: m}
}

func (r *requestTracker) finish(ctx context.Context, handler string, status, responseSize int) {
	if !r.finished {
		r.finished = true
		statusString := strconv.Itoa(status)
		if isCanceled(ctx) {
			statusString = "canceled"
		}
		labels := []string{handler, statusString}
		r.metrics.requests.WithLabelValues(labels...).Inc()
		r.metrics.responseSize.WithLabelValues(labels...).Observe(float64(responseSize))
		r.metrics.requestDuration.WithLabelValues(labels...).Observe(time.Since(r.start).Seconds())
	}
}

// utility to time a fetch of the index from the bucket
type bucketRequestTracker struct {
	finished bool
	start    time.Time
	metrics  *metrics
}

func (m *metrics) startBucketRequest() *bucketRequestTracker {
	return &bucketRequestTracker{start: time.Now(), metrics: m}
}

func (r *bucketRequestTracker) finish(ctx context.Context, status string) {
	if !r.finished {
		r.finished = true
		if isCanceled(ctx) {
			status = "canceled"
		}
		r.metrics.bucketRequests.WithLabelValues(status).Inc()
		r.metrics.bucketRequestDuration.WithLabelValues(status).Observe(time.Since(r.start).Seconds())
	}
}

func isCanceled(ctx context.Context) bool {
	return ctx.Err() == context.Canceled
}

func (m *metrics) lookup(found bool, res int) {
	if !found {
		m.lookups.WithLabelValues("miss").Inc()
		return
	}
	m.lookups.WithLabelValues("hit").Inc()
	m.lookupResolution.Observe(float64(res))
}

func (m *metrics) indexLoaded(ix *Index, reload bool) {
	m.indexCells.Set(float64(len(ix.Cells)))
	m.indexZones.Set(float64(len(ix.Zones)))
	if reload {
		m.reloads.Inc()
	}
}

func register[K prometheus.Collector](logger *log.Logger, metric K) K {
	if err := prometheus.Register(metric); err != nil {
		logger.Println(err)
	}
	return metric
}

func createMetrics(scope string, logger *log.Logger) *metrics {
	namespace := "tzh3"
	durationBuckets := prometheus.DefBuckets
	sizeBuckets := []float64{16, 64, 128, 256, 512, 1024, 4096, 16384, 65536}
	resolutionBuckets := prometheus.LinearBuckets(0, 1, MaxResolution+1)

	return &metrics{
		requests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "requests_total",
			Help:      "Overall number of requests to the service",
		}, []string{"handler", "status"})),
		responseSize: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "response_size_bytes",
			Help:      "Overall response size in bytes",
			Buckets:   sizeBuckets,
		}, []string{"handler", "status"})),
		requestDuration: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "request_duration_seconds",
			Help:      "Overall request duration in seconds",
			Buckets:   durationBuckets,
		}, []string{"handler", "status"})),

		lookups: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "lookups_total",
			Help:      "Point lookups by result (hit/miss)",
		}, []string{"result"})),
		lookupResolution: register(logger, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "lookup_resolution",
			Help:      "Resolution of the stored cell that answered a lookup",
			Buckets:   resolutionBuckets,
		})),

		indexCells: register(logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "index_cells",
			Help:      "Number of cells in the loaded index",
		})),
		indexZones: register(logger, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "index_zones",
			Help:      "Number of zones in the loaded index",
		})),

		bucketRequests: register(logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "bucket_requests_total",
			Help:      "Index fetches from the underlying bucket",
		}, []string{"status"})),
		bucketRequestDuration: register(logger, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "bucket_request_duration_seconds",
			Help:      "Duration in seconds of index fetches from the underlying bucket",
			Buckets:   durationBuckets,
		}, []string{"status"})),
		reloads: register(logger, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: scope,
			Name:      "bucket_reloads",
			Help:      "Number of times the index was reloaded due to the etag changing",
		})),
	}
}
