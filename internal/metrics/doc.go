// Package metrics provides Prometheus instrumentation for avif-everywhere.
//
// All collectors are registered at package init through promauto and are
// prefixed with "avif_everywhere_".
//
// # Metric Categories
//
// ## Transcoding
//
//   - TranscodeAttemptsTotal: encoder invocations by format, encoder and outcome
//   - TranscodeEncodeDuration: time spent in a single encode
//   - TranscodeAssetsTotal: whole-asset conversions by mode and status
//   - VariantsRecordedTotal / VariantBytesSaved: accepted variants and savings
//   - VariantPurgesTotal / VariantFilesRemoved: deletion cleanup
//
// ## Scheduling
//
//   - SchedulerPending / SchedulerRunsTotal: delayed upload conversions
//   - BatchItemsTotal / BatchRunning / BatchLastDuration: retroactive batches
//
// ## Library
//
// Refreshed periodically by Collector from a StatsProvider (the database):
//   - LibraryAssetsTotal, LibraryVariantsTotal, LibraryVariantBytes
//
// ## Infrastructure
//
// HTTP, database, filesystem retry and memory pressure metrics.
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
