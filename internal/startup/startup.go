package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/memory"
	"avif-everywhere/internal/variant"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// bytesPerMB follows the admin screen, which counts a megabyte as 10^6 bytes.
const bytesPerMB = 1_000_000

// Config holds all application configuration
type Config struct {
	UploadsDir      string
	BaseURL         string
	DatabaseDir     string
	Port            string
	LogHealthChecks bool

	// Defaults for the persisted settings
	Enabled         bool
	MaxVariantBytes int64

	AVIFMinSavings float64
	UploadDelay    time.Duration
	BatchSize      int
	BatchPause     time.Duration
	AVIFEncPath    string
	AVIFEncTimeout time.Duration

	// Derived paths
	DatabasePath string

	// UploadsWritable is false when variants cannot be written next to sources.
	UploadsWritable bool
}

// Settings returns the env defaults for the persisted settings.
func (c *Config) Settings() variant.Settings {
	return variant.Settings{Enabled: c.Enabled, MaxVariantBytes: c.MaxVariantBytes}
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := readEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("  UPLOADS_DIR:         %s", config.UploadsDir)
	logging.Info("  BASE_URL:            %s", config.BaseURL)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  AVIF_ENABLED:        %v", config.Enabled)
	logging.Info("  MAX_VARIANT_MB:      %s", formatMaxVariant(config.MaxVariantBytes))
	logging.Info("  AVIF_MIN_SAVINGS:    %.2f", config.AVIFMinSavings)
	logging.Info("  UPLOAD_DELAY:        %v", config.UploadDelay)
	logging.Info("  BATCH_SIZE:          %d", config.BatchSize)
	logging.Info("  BATCH_PAUSE:         %v", config.BatchPause)
	logging.Info("  AVIFENC_PATH:        %s", config.AVIFEncPath)
	logging.Info("  AVIFENC_TIMEOUT:     %v", config.AVIFEncTimeout)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Uploads directory (absolute): %s", config.UploadsDir)
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// The uploads directory is mounted, never created.
	info, err := os.Stat(config.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("uploads directory error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("uploads directory error: %s is not a directory", config.UploadsDir)
	}
	if err := testWriteAccess(config.UploadsDir); err != nil {
		logging.Warn("  Uploads directory is not writable: %v", err)
		logging.Warn("  Variants cannot be written until this is fixed")
	} else {
		config.UploadsWritable = true
		logging.Info("  [OK] Uploads directory is writable")
	}

	return config, nil
}

// ReadConfig reads the environment without the banner, for command line
// tools. It still creates the database directory.
func ReadConfig() (*Config, error) {
	config, err := readEnv()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.DatabaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	config.UploadsWritable = DirWritable(config.UploadsDir)
	return config, nil
}

// readEnv parses the environment without touching the filesystem.
func readEnv() (*Config, error) {
	uploadsDir, err := filepath.Abs(getEnv("UPLOADS_DIR", "/uploads"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads directory path: %w", err)
	}
	databaseDir, err := filepath.Abs(getEnv("DATABASE_DIR", "/database"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	config := &Config{
		UploadsDir:      uploadsDir,
		BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080/uploads"), "/"),
		DatabaseDir:     databaseDir,
		Port:            getEnv("PORT", "8080"),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
		Enabled:         getEnvBool("AVIF_ENABLED", true),
		MaxVariantBytes: int64(getEnvFloat("MAX_VARIANT_MB", 0) * bytesPerMB),
		AVIFMinSavings:  getEnvFloat("AVIF_MIN_SAVINGS", variant.DefaultAVIFMinSavings),
		UploadDelay:     getEnvDuration("UPLOAD_DELAY", 15*time.Second),
		BatchSize:       getEnvInt("BATCH_SIZE", 5),
		BatchPause:      getEnvDuration("BATCH_PAUSE", 400*time.Millisecond),
		AVIFEncPath:     getEnv("AVIFENC_PATH", "avifenc"),
		AVIFEncTimeout:  getEnvDuration("AVIFENC_TIMEOUT", variant.DefaultCLITimeout),
		DatabasePath:    filepath.Join(databaseDir, "avif-everywhere.db"),
	}

	if config.MaxVariantBytes < 0 {
		logging.Warn("  Negative MAX_VARIANT_MB, variants will not be capped")
		config.MaxVariantBytes = 0
	}
	if config.AVIFMinSavings < 0 || config.AVIFMinSavings >= 1 {
		logging.Warn("  AVIF_MIN_SAVINGS must be in [0, 1), using default: %.2f", variant.DefaultAVIFMinSavings)
		config.AVIFMinSavings = variant.DefaultAVIFMinSavings
	}
	if config.BatchSize < 1 {
		logging.Warn("  BATCH_SIZE must be positive, using default: 5")
		config.BatchSize = 5
	}
	return config, nil
}

func formatMaxVariant(n int64) string {
	if n == 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(float64(n)/bytesPerMB, 'f', -1, 64) + " MB"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogEncoderInit logs which encoders were found.
func LogEncoderInit(caps variant.Capabilities, vipsVersion string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if vipsVersion != "" {
		logging.Info("  libvips:         %s", vipsVersion)
	} else {
		logging.Warn("  libvips:         not available")
	}
	logging.Info("  avifenc (CLI):   %s", enabledString(caps.CLIAvailable))
	logging.Info("  AVIF (library):  %s", enabledString(caps.AVIFSupported))
	logging.Info("  WebP (library):  %s", enabledString(caps.WebPSupported))
	if !caps.Any() {
		logging.Warn("  No encoder is available, conversions will fail")
	}
}

// LogMemoryConfig logs the GOMEMLIMIT outcome.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	switch {
	case !result.Configured:
		logging.Info("  GOMEMLIMIT:      not configured")
	case result.Source == "MEMORY_LIMIT":
		logging.Info("  GOMEMLIMIT:      %s (%.0f%% of %s)",
			formatBytes(result.GoMemLimit), result.Ratio*100, formatBytes(result.ContainerLimit))
	default:
		logging.Info("  GOMEMLIMIT:      %s (from %s)", formatBytes(result.GoMemLimit), result.Source)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// LogServerStarted logs successful server start
func LogServerStarted(port string, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", startupDuration)
	logging.Info("  API:             http://0.0.0.0:%s/api", port)
	logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    ___ _    ____________   ______                            __
   /   | |  / /  _/ ____/  / ____/   _____  _______ __      __/ /_  ___  ________
  / /| | | / // // /_     / __/ | | / / _ \/ ___/ / / / | /| / / __ \/ _ \/ ___/ _ \
 / ___ | |/ // // __/    / /___ | |/ /  __/ /  / /_/ /| |/ |/ / / / /  __/ /  /  __/
/_/  |_|___/___/_/      /_____/ |___/\___/_/   \__, / |__/|__/_/ /_/\___/_/   \___/
                                              /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
		if path, err := exec.LookPath("avifenc"); err == nil {
			logging.Debug("  avifenc on PATH: %s", path)
			logAvifencVersion(path)
		}
	}

	logging.Info("")
}

func logAvifencVersion(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return
	}
	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  avifenc version: %s", strings.TrimSpace(line))
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// DirWritable reports whether dir accepts new files.
func DirWritable(dir string) bool {
	return testWriteAccess(dir) == nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
