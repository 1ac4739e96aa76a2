package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"avif-everywhere/internal/memory"
	"avif-everywhere/internal/variant"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_SET_VAR", "custom")
	t.Setenv("TEST_EMPTY_VAR", "")

	if got := getEnv("TEST_SET_VAR", "default"); got != "custom" {
		t.Errorf("getEnv(set) = %q", got)
	}
	if got := getEnv("TEST_EMPTY_VAR", "default"); got != "default" {
		t.Errorf("getEnv(empty) = %q, want default", got)
	}
	if got := getEnv("TEST_SURELY_UNSET_VAR", "default"); got != "default" {
		t.Errorf("getEnv(unset) = %q, want default", got)
	}
}

func TestGetEnvParsers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"bool true", "true", func(t *testing.T) {
			if !getEnvBool("TEST_VAL", false) {
				t.Error("want true")
			}
		}},
		{"bool invalid", "maybe", func(t *testing.T) {
			if !getEnvBool("TEST_VAL", true) {
				t.Error("invalid bool should use default")
			}
		}},
		{"int", "12", func(t *testing.T) {
			if got := getEnvInt("TEST_VAL", 5); got != 12 {
				t.Errorf("got %d", got)
			}
		}},
		{"int invalid", "twelve", func(t *testing.T) {
			if got := getEnvInt("TEST_VAL", 5); got != 5 {
				t.Errorf("got %d", got)
			}
		}},
		{"float", "0.35", func(t *testing.T) {
			if got := getEnvFloat("TEST_VAL", 0.2); got != 0.35 {
				t.Errorf("got %v", got)
			}
		}},
		{"duration", "250ms", func(t *testing.T) {
			if got := getEnvDuration("TEST_VAL", time.Second); got != 250*time.Millisecond {
				t.Errorf("got %v", got)
			}
		}},
		{"duration negative", "-5s", func(t *testing.T) {
			if got := getEnvDuration("TEST_VAL", time.Second); got != time.Second {
				t.Errorf("got %v", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_VAL", tt.value)
			tt.check(t)
		})
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"UPLOADS_DIR", "BASE_URL", "DATABASE_DIR", "PORT", "AVIF_ENABLED",
		"MAX_VARIANT_MB", "AVIF_MIN_SAVINGS", "UPLOAD_DELAY", "BATCH_SIZE",
		"BATCH_PAUSE", "AVIFENC_PATH", "AVIFENC_TIMEOUT", "LOG_HEALTH_CHECKS",
	} {
		t.Setenv(key, "")
	}
}

func TestReadEnvDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := readEnv()
	if err != nil {
		t.Fatalf("readEnv() error = %v", err)
	}
	if config.UploadsDir != "/uploads" || config.DatabaseDir != "/database" || config.Port != "8080" {
		t.Errorf("dirs = %+v", config)
	}
	if !config.Enabled || config.MaxVariantBytes != 0 {
		t.Errorf("settings defaults = %+v", config.Settings())
	}
	if config.AVIFMinSavings != variant.DefaultAVIFMinSavings {
		t.Errorf("AVIFMinSavings = %v", config.AVIFMinSavings)
	}
	if config.UploadDelay != 15*time.Second || config.BatchSize != 5 || config.BatchPause != 400*time.Millisecond {
		t.Errorf("scheduling defaults = %v %d %v", config.UploadDelay, config.BatchSize, config.BatchPause)
	}
	if config.AVIFEncPath != "avifenc" || config.AVIFEncTimeout != variant.DefaultCLITimeout {
		t.Errorf("avifenc = %s %v", config.AVIFEncPath, config.AVIFEncTimeout)
	}
	if config.DatabasePath != filepath.Join("/database", "avif-everywhere.db") {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
}

func TestReadEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BASE_URL", "https://cdn.example.com/wp-content/uploads/")
	t.Setenv("AVIF_ENABLED", "false")
	t.Setenv("MAX_VARIANT_MB", "1.5")
	t.Setenv("AVIF_MIN_SAVINGS", "0.3")
	t.Setenv("BATCH_SIZE", "0")

	config, err := readEnv()
	if err != nil {
		t.Fatal(err)
	}
	if config.BaseURL != "https://cdn.example.com/wp-content/uploads" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", config.BaseURL)
	}
	if config.Enabled {
		t.Error("AVIF_ENABLED=false ignored")
	}
	if config.MaxVariantBytes != 1_500_000 {
		t.Errorf("MaxVariantBytes = %d, want 1500000", config.MaxVariantBytes)
	}
	if config.AVIFMinSavings != 0.3 {
		t.Errorf("AVIFMinSavings = %v", config.AVIFMinSavings)
	}
	if config.BatchSize != 5 {
		t.Errorf("BatchSize = %d, invalid value should fall back to 5", config.BatchSize)
	}
}

func TestReadEnvRejectsBadSavings(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AVIF_MIN_SAVINGS", "1.5")
	t.Setenv("MAX_VARIANT_MB", "-2")

	config, err := readEnv()
	if err != nil {
		t.Fatal(err)
	}
	if config.AVIFMinSavings != variant.DefaultAVIFMinSavings {
		t.Errorf("AVIFMinSavings = %v, want default", config.AVIFMinSavings)
	}
	if config.MaxVariantBytes != 0 {
		t.Errorf("MaxVariantBytes = %d, want 0", config.MaxVariantBytes)
	}
}

func TestLoadConfig(t *testing.T) {
	clearConfigEnv(t)
	uploads := t.TempDir()
	dbDir := filepath.Join(t.TempDir(), "db")
	t.Setenv("UPLOADS_DIR", uploads)
	t.Setenv("DATABASE_DIR", dbDir)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !config.UploadsWritable {
		t.Error("temp uploads dir should be writable")
	}
	if info, err := os.Stat(dbDir); err != nil || !info.IsDir() {
		t.Error("database directory should be created")
	}
	if _, err := os.Stat(filepath.Join(uploads, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file left behind")
	}
}

func TestLoadConfigMissingUploads(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("UPLOADS_DIR", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("DATABASE_DIR", t.TempDir())

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail without an uploads directory")
	}
}

func TestFormatMaxVariant(t *testing.T) {
	tests := map[int64]string{0: "unlimited", 1_000_000: "1 MB", 2_500_000: "2.5 MB"}
	for in, want := range tests {
		if got := formatMaxVariant(in); got != want {
			t.Errorf("formatMaxVariant(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1572864, "1.5 MiB"},
		{912680550, "870.4 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/health":                   "health",
		"/api/assets/{id}/variants": "api/assets",
		"/api/scan":                 "api/scan",
		"/":                         "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/health", nil).Methods("GET")
	r.HandleFunc("/api/assets", nil).Methods("POST")

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 || routes[0].Method != "GET" || routes[1].Path != "/api/assets" {
		t.Errorf("GetRoutes() = %+v", routes)
	}
}

func TestLogHelpers(_ *testing.T) {
	// Must not panic.
	LogDatabaseInit(time.Millisecond)
	LogEncoderInit(variant.Capabilities{}, "")
	LogEncoderInit(variant.Capabilities{CLIAvailable: true, AVIFSupported: true, WebPSupported: true}, "8.15.0")
	LogMemoryConfig(memory.ConfigResult{})
	LogMemoryConfig(memory.ConfigResult{Configured: true, Source: "MEMORY_LIMIT", GoMemLimit: 1 << 30, ContainerLimit: 2 << 30, Ratio: 0.5})
	LogMemoryConfig(memory.ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: 1 << 30})
	LogServerStarted("8080", time.Second)
	LogShutdownInitiated("SIGTERM")
	LogShutdownStep("Stopping")
	LogShutdownStepComplete("Stopped")
	LogShutdownComplete()
}

func TestReadConfigCreatesDatabaseDir(t *testing.T) {
	uploads := t.TempDir()
	dbDir := filepath.Join(t.TempDir(), "nested", "db")
	t.Setenv("UPLOADS_DIR", uploads)
	t.Setenv("DATABASE_DIR", dbDir)

	config, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}
	if info, err := os.Stat(dbDir); err != nil || !info.IsDir() {
		t.Errorf("database dir not created: %v", err)
	}
	if !config.UploadsWritable {
		t.Error("UploadsWritable = false for a temp dir")
	}
	if config.DatabasePath != filepath.Join(dbDir, "avif-everywhere.db") {
		t.Errorf("DatabasePath = %q", config.DatabasePath)
	}
}
