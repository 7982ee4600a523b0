// Package metrics provides Prometheus metrics for the pixel cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PixelRequestsTotal counts nexus pixel requests by operation and status.
	PixelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcache",
			Name:      "pixel_requests_total",
			Help:      "Total number of pixel cache nexus requests",
		},
		[]string{"operation", "status"},
	)

	// PixelRequestDuration measures nexus request latency in seconds.
	PixelRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelcache",
			Name:      "pixel_request_duration_seconds",
			Help:      "Pixel cache nexus request duration in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	// PixelsTransferred counts pixels copied between storage and nexus buffers.
	PixelsTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcache",
			Name:      "pixels_transferred_total",
			Help:      "Pixels copied between cache storage and nexus staging buffers",
		},
		[]string{"direction"},
	)

	// StorageBytes tracks the bytes held by open caches per storage type.
	StorageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixelcache",
			Name:      "storage_bytes",
			Help:      "Bytes held by open pixel caches",
		},
		[]string{"cache_type"},
	)

	// RowCacheTotal counts disk row cache lookups by result.
	RowCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcache",
			Name:      "row_cache_lookups_total",
			Help:      "Disk cache resident row lookups",
		},
		[]string{"result"},
	)

	// RowCacheEvictionsTotal counts rows evicted from disk row caches.
	RowCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pixelcache",
			Name:      "row_cache_evictions_total",
			Help:      "Total number of resident rows evicted from disk caches",
		},
	)

	// ViewsActive tracks live cache views.
	ViewsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelcache",
			Name:      "views_active",
			Help:      "Number of cache views not yet destroyed",
		},
	)

	// ImagesActive tracks images with a positive reference count.
	ImagesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelcache",
			Name:      "images_active",
			Help:      "Number of live images",
		},
	)
)

// RecordRequest records the outcome and latency of a nexus request.
func RecordRequest(operation string, err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	PixelRequestsTotal.WithLabelValues(operation, status).Inc()
	PixelRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordTransfer records pixels read from ("read") or written to ("write")
// storage.
func RecordTransfer(direction string, pixels int) {
	PixelsTransferred.WithLabelValues(direction).Add(float64(pixels))
}

// RecordRowCache records a row cache hit or miss.
func RecordRowCache(hit bool) {
	if hit {
		RowCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	RowCacheTotal.WithLabelValues("miss").Inc()
}

// AddStorage adjusts the storage gauge of a cache type by delta bytes.
func AddStorage(cacheType string, delta int64) {
	StorageBytes.WithLabelValues(cacheType).Add(float64(delta))
}

// ToolCallsTotal counts MCP tool calls by tool and status.
var ToolCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelcache",
		Name:      "tool_calls_total",
		Help:      "Total number of MCP tool calls",
	},
	[]string{"tool", "status"},
)

// RecordToolCall records the outcome of an MCP tool call.
func RecordToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}
