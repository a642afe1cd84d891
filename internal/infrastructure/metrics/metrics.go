// Package metrics provides Prometheus metrics for the navidrive server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navidrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navidrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Drive metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navidrive_uploads_total",
			Help: "Uploads by assigned corruption level and storage mode",
		},
		[]string{"corruption_level", "mode"},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navidrive_storage_operation_duration_seconds",
			Help:    "Blob storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navidrive_storage_operations_total",
			Help: "Total blob storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	shareDownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navidrive_share_downloads_total",
			Help: "Total downloads through share links",
		},
	)

	// Session metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navidrive_active_sessions",
			Help: "Number of live session runtimes",
		},
	)

	narrativeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navidrive_narrative_transitions_total",
			Help: "Narrative level transitions by target level",
		},
		[]string{"level"},
	)

	sequenceMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navidrive_sequence_matches_total",
			Help: "Key sequence matches by detector",
		},
		[]string{"detector"},
	)

	repairAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navidrive_repair_attempts_total",
			Help: "Counted repair attempts",
		},
	)

	corruptionTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navidrive_corruption_ticks_total",
			Help: "Corruption scheduler ticks across all sessions",
		},
	)

	glitchFlashesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navidrive_glitch_flashes_total",
			Help: "Page-wide glitch flashes raised",
		},
	)

	staleListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navidrive_stale_listings_dropped_total",
			Help: "Folder listings discarded because a later navigation superseded them",
		},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navidrive_sse_connections_active",
			Help: "Number of open view streams",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordUpload records an upload and the corruption level it was assigned.
func RecordUpload(level int, mode string) {
	uploadsTotal.WithLabelValues(strconv.Itoa(level), mode).Inc()
}

// RecordStorageOperation records a blob store call.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

func RecordShareDownload() {
	shareDownloadsTotal.Inc()
}

func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordTransition records a narrative level change.
func RecordTransition(level string) {
	narrativeTransitionsTotal.WithLabelValues(level).Inc()
}

func RecordSequenceMatch(detector string) {
	sequenceMatchesTotal.WithLabelValues(detector).Inc()
}

func RecordRepairAttempt() {
	repairAttemptsTotal.Inc()
}

func RecordCorruptionTick() {
	corruptionTicksTotal.Inc()
}

func RecordGlitchFlash() {
	glitchFlashesTotal.Inc()
}

func RecordStaleListing() {
	staleListingsTotal.Inc()
}

// SSEConnectionOpened and SSEConnectionClosed track open view streams.
func SSEConnectionOpened() {
	sseConnectionsActive.Inc()
}

func SSEConnectionClosed() {
	sseConnectionsActive.Dec()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, rw.statusCode, time.Since(start))
	})
}
