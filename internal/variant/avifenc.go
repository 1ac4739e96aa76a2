package variant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"avif-everywhere/internal/logging"
)

// DefaultCLITimeout bounds a single avifenc run.
const DefaultCLITimeout = 2 * time.Minute

// CLIEncoder shells out to avifenc for lossless AVIF from opaque PNGs.
type CLIEncoder struct {
	binary  string
	timeout time.Duration
	speed   int
}

// NewCLIEncoder resolves name on PATH. If it cannot be found the encoder
// reports itself unavailable rather than failing construction.
func NewCLIEncoder(name string, timeout time.Duration) *CLIEncoder {
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	e := &CLIEncoder{timeout: timeout, speed: 4}

	path, err := exec.LookPath(name)
	if err != nil {
		logging.Debug("avifenc not found (%s): %v", name, err)
		return e
	}
	e.binary = path
	logging.Debug("Using avifenc: %s", path)
	return e
}

// Available reports whether the binary was found.
func (e *CLIEncoder) Available() bool {
	return e.binary != ""
}

// Binary returns the resolved binary path, empty when unavailable.
func (e *CLIEncoder) Binary() string {
	return e.binary
}

func (e *CLIEncoder) Name() string {
	return "avifenc"
}

func (e *CLIEncoder) Supports(format Format) bool {
	return e.Available() && format == FormatAVIF
}

// Encode runs avifenc --lossless at native resolution. attempt is ignored
// beyond being recorded on the candidate.
func (e *CLIEncoder) Encode(ctx context.Context, src *SourceImage, format Format, _ AttemptSpec, dst string) (*Candidate, error) {
	const op = "avifenc"

	if !e.Available() {
		return nil, newError(KindEncoderUnavailable, op, src.Path, nil)
	}
	if format != FormatAVIF {
		return nil, errorf(KindUnsupportedFormat, op, src.Path, "cannot produce %s", format)
	}
	if !src.IsPNG() {
		return nil, errorf(KindUnsupportedFormat, op, src.Path, "lossless path only handles PNG, got %s", src.MIME)
	}
	if src.HasAlpha {
		return nil, newError(KindAlphaUnsupported, op, src.Path, nil)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.binary,
		"--lossless",
		"--speed", strconv.Itoa(e.speed),
		src.Path,
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logging.Debug("Running avifenc for %s", filepath.Base(src.Path))
	if err := cmd.Run(); err != nil {
		removePartial(dst)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, errorf(KindEncodeFailed, op, src.Path, "timed out after %v", e.timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errorf(KindEncodeFailed, op, src.Path, "%v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, newError(KindEncodeFailed, op, src.Path, fmt.Errorf("avifenc produced no output: %w", err))
	}
	if info.Size() == 0 {
		removePartial(dst)
		return nil, errorf(KindEncodeFailed, op, src.Path, "avifenc produced an empty file")
	}

	return &Candidate{
		Format:   FormatAVIF,
		Bytes:    info.Size(),
		TempPath: dst,
		Attempt:  LosslessAttempt,
		Encoder:  e.Name(),
		Width:    src.Width,
		Height:   src.Height,
	}, nil
}
