package variant

import (
	"context"
	"os"

	"avif-everywhere/internal/logging"
)

// Encoder produces one candidate file per call. Implementations write exactly
// one file at dst on success and leave nothing behind on failure; on
// rejection the caller deletes dst.
type Encoder interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Supports reports whether the backend can produce format on this host.
	Supports(format Format) bool
	// Encode writes a candidate for src at dst.
	Encode(ctx context.Context, src *SourceImage, format Format, attempt AttemptSpec, dst string) (*Candidate, error)
}

// ProbeCapabilities checks the encoders once. The result is passed into the
// Chain instead of re-probing per asset.
func ProbeCapabilities(cli Encoder, lib Encoder) Capabilities {
	var caps Capabilities
	if cli != nil {
		caps.CLIAvailable = cli.Supports(FormatAVIF)
	}
	if lib != nil {
		caps.AVIFSupported = lib.Supports(FormatAVIF)
		caps.WebPSupported = lib.Supports(FormatWebP)
	}
	logging.Info("Encoder capabilities: avifenc=%v library-avif=%v library-webp=%v",
		caps.CLIAvailable, caps.AVIFSupported, caps.WebPSupported)
	return caps
}

// Discard deletes the candidate's temporary file. Calling it more than once is
// harmless.
func (c *Candidate) Discard() {
	if c == nil || c.TempPath == "" {
		return
	}
	if err := os.Remove(c.TempPath); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove candidate %s: %v", c.TempPath, err)
	}
}

// removePartial cleans up whatever an encoder left at dst after a failure.
func removePartial(dst string) {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove partial output %s: %v", dst, err)
	}
}
