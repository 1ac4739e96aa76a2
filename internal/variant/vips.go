package variant

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"golang.org/x/image/webp"

	"avif-everywhere/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// webpReductionEffort matches cwebp's slowest, smallest method.
const webpReductionEffort = 6

// InitVips initializes the libvips library.
// This should be called once at startup.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL is respected
	// from the first message.
	vipsLevel, threshold := vipsLogLevels(logging.GetLevel())
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		// GLib levels grow numerically as severity drops.
		if level > threshold {
			return
		}
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLevel)

	// Encodes are memory hungry, keep concurrency and cache small.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// vipsLogLevels maps the application level onto the vips level and the
// least severe vips level we forward.
func vipsLogLevels(level logging.LogLevel) (vips.LogLevel, vips.LogLevel) {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, vips.LogLevelDebug
	case logging.LevelInfo:
		return vips.LogLevelWarning, vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError, vips.LogLevelCritical
	case logging.LevelError:
		return vips.LogLevelCritical, vips.LogLevelCritical
	default:
		return vips.LogLevelWarning, vips.LogLevelCritical
	}
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is available for use.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsVersion returns the linked libvips version, or "" before InitVips.
func VipsVersion() string {
	if !IsVipsAvailable() {
		return ""
	}
	return vips.Version
}

// VipsEncoder encodes AVIF and WebP candidates through libvips.
type VipsEncoder struct{}

// NewVipsEncoder returns the library encoder. InitVips must have been called
// for it to report any support.
func NewVipsEncoder() *VipsEncoder {
	return &VipsEncoder{}
}

func (e *VipsEncoder) Name() string {
	return "vips"
}

// Supports reports whether the linked libvips build can save format.
func (e *VipsEncoder) Supports(format Format) bool {
	if !IsVipsAvailable() {
		return false
	}
	switch format {
	case FormatAVIF:
		return vips.IsTypeSupported(vips.ImageTypeAVIF)
	case FormatWebP:
		return vips.IsTypeSupported(vips.ImageTypeWEBP)
	}
	return false
}

// Encode loads src, downsizes it to fit the attempt's cap when it is larger,
// and writes the encoded bytes to dst.
func (e *VipsEncoder) Encode(ctx context.Context, src *SourceImage, format Format, attempt AttemptSpec, dst string) (*Candidate, error) {
	const op = "vips encode"

	if !IsVipsAvailable() {
		return nil, newError(KindEncoderUnavailable, op, src.Path, nil)
	}
	if !e.Supports(format) {
		return nil, errorf(KindUnsupportedFormat, op, src.Path, "libvips cannot save %s", format)
	}
	if format == FormatAVIF && src.HasAlpha {
		return nil, newError(KindAlphaUnsupported, op, src.Path, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, err := vips.LoadImageFromFile(src.Path, vips.NewImportParams())
	if err != nil {
		return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("load: %w", err))
	}
	defer ref.Close()

	if !attempt.Lossless {
		if scale, ok := downscaleFactor(ref.Width(), ref.Height(), attempt.MaxDimension); ok {
			logging.Debug("Resizing %s from %dx%d (scale %.3f, cap %d)",
				filepath.Base(src.Path), ref.Width(), ref.Height(), scale, attempt.MaxDimension)
			if err := ref.Resize(scale, vips.KernelLanczos3); err != nil {
				return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("resize: %w", err))
			}
		}
	}

	var buf []byte
	switch format {
	case FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = attempt.Quality
		params.Lossless = attempt.Lossless
		buf, _, err = ref.ExportAvif(params)
	case FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = attempt.Quality
		params.Lossless = attempt.Lossless
		params.ReductionEffort = webpReductionEffort
		buf, _, err = ref.ExportWebp(params)
	}
	if err != nil {
		return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("export %s: %w", format, err))
	}
	if len(buf) == 0 {
		return nil, errorf(KindEncodeFailed, op, src.Path, "export %s produced no data", format)
	}

	if format == FormatWebP {
		if _, err := webp.DecodeConfig(bytes.NewReader(buf)); err != nil {
			return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("invalid webp output: %w", err))
		}
	}

	if err := os.WriteFile(dst, buf, 0o644); err != nil {
		removePartial(dst)
		return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("write candidate: %w", err))
	}

	return &Candidate{
		Format:   format,
		Bytes:    int64(len(buf)),
		TempPath: dst,
		Attempt:  attempt,
		Encoder:  e.Name(),
		Width:    ref.Width(),
		Height:   ref.Height(),
	}, nil
}

// downscaleFactor returns the scale that fits the longest edge within
// maxDim. ok is false when the image already fits or there is no cap.
func downscaleFactor(width, height, maxDim int) (float64, bool) {
	if maxDim <= 0 {
		return 1, false
	}
	longest := max(width, height)
	if longest <= maxDim {
		return 1, false
	}
	return float64(maxDim) / float64(longest), true
}
