package variant

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	// Image format decoders for DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"avif-everywhere/internal/filesystem"
	"avif-everywhere/internal/logging"
)

// Locator resolves the canonical full-resolution source for an asset path.
type Locator struct {
	retry filesystem.RetryConfig
}

// NewLocator creates a Locator using the default NFS retry policy.
func NewLocator() *Locator {
	return &Locator{retry: filesystem.DefaultRetryConfig()}
}

// Locate prefers the unscaled original over a "-scaled" path when the original
// exists on disk, then classifies it. It only reads from disk.
func (l *Locator) Locate(ctx context.Context, assetPath string) (*SourceImage, error) {
	const op = "locate"

	path := assetPath
	if IsScaledPath(assetPath) {
		original := UnscaledPath(assetPath)
		if fileExists(ctx, original) {
			logging.Debug("Using original %s instead of scaled %s", filepath.Base(original), filepath.Base(assetPath))
			path = original
		} else {
			logging.Debug("Original not found for %s, using scaled file", filepath.Base(assetPath))
		}
	}

	if !fileExists(ctx, path) {
		return nil, newError(KindSourceMissing, op, assetPath, nil)
	}

	info, err := filesystem.StatWithRetry(path, l.retry)
	if err != nil {
		return nil, newError(KindSourceMissing, op, path, err)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, newError(KindSourceMissing, op, path, err)
	}

	var mime string
	switch {
	case mtype.Is(MIMEJPEG):
		mime = MIMEJPEG
	case mtype.Is(MIMEPNG):
		mime = MIMEPNG
	default:
		return nil, errorf(KindUnsupportedFormat, op, path, "detected %s", mtype.String())
	}

	cfg, err := l.decodeConfig(path)
	if err != nil {
		return nil, errorf(KindUnsupportedFormat, op, path, "read dimensions: %w", err)
	}

	src := &SourceImage{
		Path:   path,
		MIME:   mime,
		Width:  cfg.Width,
		Height: cfg.Height,
		Bytes:  info.Size(),
	}

	if mime == MIMEPNG {
		src.HasAlpha, err = probeAlpha(path, cfg.ColorModel)
		if err != nil {
			return nil, errorf(KindUnsupportedFormat, op, path, "probe transparency: %w", err)
		}
	}

	logging.Debug("Located %s: %s %dx%d alpha=%v (%d bytes)",
		filepath.Base(path), mime, src.Width, src.Height, src.HasAlpha, src.Bytes)
	return src, nil
}

func (l *Locator) decodeConfig(path string) (image.Config, error) {
	f, err := filesystem.OpenWithRetry(path, l.retry)
	if err != nil {
		return image.Config{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

// probeAlpha reports whether a PNG actually uses transparency. Gray images
// cannot carry alpha. Everything else is decoded and scanned, since an alpha
// channel that is fully opaque is safe to encode as AVIF.
func probeAlpha(path string, model color.Model) (bool, error) {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return false, nil
	}

	if palette, ok := model.(color.Palette); ok && paletteOpaque(palette) {
		return false, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return false, fmt.Errorf("decode png: %w", err)
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque(), nil
	}
	return !imaging.Clone(img).Opaque(), nil
}

func paletteOpaque(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return false
		}
	}
	return true
}
