// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - UPLOADS_DIR: Directory holding the uploaded images (default: /uploads)
//   - BASE_URL: Public URL of UPLOADS_DIR (default: http://localhost:8080/uploads)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - AVIF_ENABLED: Default for the "enabled" setting (default: true)
//   - MAX_VARIANT_MB: Default per-variant cap in MB of 10^6 bytes, 0 for none (default: 0)
//   - AVIF_MIN_SAVINGS: Share an AVIF must save over the baseline (default: 0.2)
//   - UPLOAD_DELAY: Wait before converting a fresh upload (default: 15s)
//   - BATCH_SIZE: Assets per batch chunk (default: 5)
//   - BATCH_PAUSE: Pause between batch chunks (default: 400ms)
//   - AVIFENC_PATH: avifenc binary (default: avifenc)
//   - AVIFENC_TIMEOUT: Limit for one avifenc run (default: 2m)
//   - TRANSCODE_WORKERS: Concurrent conversions inside a batch chunk
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// The "enabled" and "max variant bytes" values are only defaults. Values
// saved through the settings API take precedence.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
