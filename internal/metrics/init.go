package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	formats := []string{"avif", "webp"}
	encoders := []string{"avifenc", "vips"}

	for _, f := range formats {
		for _, e := range encoders {
			for _, outcome := range []string{"accepted", "rejected", "error", "unsupported"} {
				TranscodeAttemptsTotal.WithLabelValues(f, e, outcome)
			}
			TranscodeEncodeDuration.WithLabelValues(f, e)
		}
		VariantsRecordedTotal.WithLabelValues(f)
		VariantBytesSaved.WithLabelValues(f)
		LibraryVariantsTotal.WithLabelValues(f)
		LibraryVariantBytes.WithLabelValues(f)
	}

	for _, mode := range []string{"compare", "skip"} {
		for _, status := range []string{"success", "failed", "disabled"} {
			TranscodeAssetsTotal.WithLabelValues(mode, status)
		}
	}

	for _, status := range []string{"success", "error"} {
		VariantPurgesTotal.WithLabelValues(status)
		SchedulerRunsTotal.WithLabelValues(status)
	}
	SchedulerRunsTotal.WithLabelValues("skipped")

	for _, status := range []string{"success", "failed", "existing"} {
		BatchItemsTotal.WithLabelValues(status)
	}

	ExistenceCacheLookups.WithLabelValues("hit")
	ExistenceCacheLookups.WithLabelValues("miss")

	for _, op := range []string{"stat", "open", "remove"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "upsert_variant", "get_variants",
		"delete_variants", "create_asset", "get_asset", "delete_asset", "list_missing",
		"get_setting", "set_setting", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
