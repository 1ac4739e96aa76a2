package variant

import (
	"context"
	"path/filepath"
)

// Resolver maps source image URLs to existing variant URLs for rendering.
type Resolver struct {
	urls *Recorder
}

// NewResolver creates a Resolver that shares the Recorder's URL mapping.
func NewResolver(rec *Recorder) *Resolver {
	return &Resolver{urls: rec}
}

// GuessVariantURL looks for a variant next to the file behind imageURL. It
// tries the URL as given, then with a -WxH size suffix removed, then with the
// -scaled suffix removed. ok is false when no variant file exists.
func (r *Resolver) GuessVariantURL(ctx context.Context, imageURL string, format Format) (string, bool) {
	if !format.Valid() {
		return "", false
	}
	path, ok := r.urls.PathFor(imageURL)
	if !ok || !HasSourceExt(path) {
		return "", false
	}

	for _, candidate := range guessSources(path) {
		vp, ok := VariantPath(candidate, format)
		if !ok || !fileExists(ctx, vp) {
			continue
		}
		url, err := r.urls.URLFor(vp)
		if err != nil {
			continue
		}
		return url, true
	}
	return "", false
}

// guessSources lists the source spellings to probe, most specific first.
func guessSources(path string) []string {
	dir, name := filepath.Split(path)
	out := []string{path}

	if IsIntermediateSize(name) {
		name = sizeSuffixRe.ReplaceAllString(name, ".$1")
		out = append(out, dir+name)
	}
	if IsScaledPath(name) {
		out = append(out, dir+UnscaledPath(name))
	}
	return out
}

// Preferred picks the record to serve: AVIF when present, otherwise WebP.
func Preferred(records []VariantRecord) (VariantRecord, bool) {
	var webp *VariantRecord
	for i := range records {
		switch records[i].Format {
		case FormatAVIF:
			return records[i], true
		case FormatWebP:
			webp = &records[i]
		}
	}
	if webp != nil {
		return *webp, true
	}
	return VariantRecord{}, false
}
