package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avif_everywhere_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avif_everywhere_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Transcoding engine metrics
var (
	// TranscodeAttemptsTotal counts every encoder invocation.
	// outcome is one of accepted, rejected, error, unsupported.
	TranscodeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_transcode_attempts_total",
			Help: "Total number of encoder attempts by format, encoder and outcome",
		},
		[]string{"format", "encoder", "outcome"},
	)

	TranscodeEncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avif_everywhere_transcode_encode_duration_seconds",
			Help:    "Duration of a single encoder attempt in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"format", "encoder"},
	)

	TranscodeAssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_transcode_assets_total",
			Help: "Total number of asset conversions by mode and status",
		},
		[]string{"mode", "status"},
	)

	VariantsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_variants_recorded_total",
			Help: "Total number of variant records written by format",
		},
		[]string{"format"},
	)

	VariantBytesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_variant_bytes_saved_total",
			Help: "Bytes saved by accepted variants relative to their baseline",
		},
		[]string{"format"},
	)

	VariantPurgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_variant_purges_total",
			Help: "Total number of asset purges by status",
		},
		[]string{"status"},
	)

	VariantFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avif_everywhere_variant_files_removed_total",
			Help: "Total number of variant files removed from disk",
		},
	)

	ExistenceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_existence_cache_lookups_total",
			Help: "File existence lookups by cache result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// Scheduler and batch metrics
var (
	SchedulerPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_scheduler_pending",
			Help: "Number of upload conversions waiting for their delay to elapse",
		},
	)

	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_scheduler_runs_total",
			Help: "Total number of delayed upload conversions by status",
		},
		[]string{"status"},
	)

	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_batch_items_total",
			Help: "Total number of batch items processed by status",
		},
		[]string{"status"}, // "success", "failed", "existing"
	)

	BatchRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_batch_running",
			Help: "Whether a batch is currently running (1 = running, 0 = idle)",
		},
	)

	BatchLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_batch_last_duration_seconds",
			Help: "Duration of the last batch run in seconds",
		},
	)
)

// Library metrics, refreshed by the Collector
var (
	LibraryAssetsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_library_assets_total",
			Help: "Number of registered image assets",
		},
	)

	LibraryVariantsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_library_variants_total",
			Help: "Number of stored variants by format",
		},
		[]string{"format"},
	)

	LibraryVariantBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_library_variant_bytes",
			Help: "Total size of stored variants by format",
		},
		[]string{"format"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_filesystem_retry_failures_total",
			Help: "Filesystem operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avif_everywhere_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_memory_usage_ratio",
			Help: "Heap usage as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avif_everywhere_memory_paused",
			Help: "Whether batch work is paused for memory pressure (1 = paused)",
		},
	)
)
