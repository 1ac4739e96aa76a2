package variant

import (
	"regexp"
	"strings"
)

// TempSuffix is appended to a variant path while its candidate is undecided.
const TempSuffix = ".temp"

var (
	scaledSuffixRe = regexp.MustCompile(`(?i)-scaled\.(jpe?g|png)$`)
	sourceExtRe    = regexp.MustCompile(`(?i)\.(jpe?g|png)$`)
	sizeSuffixRe   = regexp.MustCompile(`(?i)-\d+x\d+\.(jpe?g|png)$`)
)

// IsScaledPath reports whether path carries the platform "-scaled" suffix.
func IsScaledPath(path string) bool {
	return scaledSuffixRe.MatchString(path)
}

// UnscaledPath strips a "-scaled" suffix: photo-scaled.jpg -> photo.jpg.
// Paths without the suffix are returned unchanged.
func UnscaledPath(path string) string {
	return scaledSuffixRe.ReplaceAllString(path, ".$1")
}

// ScaledPath returns the downsized sibling for an original:
// photo.jpg -> photo-scaled.jpg. Already-scaled paths are returned unchanged.
func ScaledPath(path string) string {
	if IsScaledPath(path) {
		return path
	}
	return sourceExtRe.ReplaceAllString(path, "-scaled.$1")
}

// IsIntermediateSize reports whether name is a resized copy such as
// photo-300x200.jpg. Those are never converted on their own.
func IsIntermediateSize(name string) bool {
	return sizeSuffixRe.MatchString(name)
}

// HasSourceExt reports whether path ends in .jpg, .jpeg or .png.
func HasSourceExt(path string) bool {
	return sourceExtRe.MatchString(path)
}

// VariantPath swaps the source extension for the format extension.
// ok is false when path is not a JPEG/PNG path.
func VariantPath(path string, format Format) (string, bool) {
	if !HasSourceExt(path) {
		return "", false
	}
	return sourceExtRe.ReplaceAllString(path, format.Ext()), true
}

// TempPath returns the in-progress path for a final variant path.
func TempPath(final string) string {
	return final + TempSuffix
}

// PurgeCandidates lists every variant file that may exist for an asset path,
// covering both the scaled and unscaled spellings of the source.
func PurgeCandidates(assetPath string) []string {
	sources := []string{assetPath}
	if unscaled := UnscaledPath(assetPath); unscaled != assetPath {
		sources = append(sources, unscaled)
	}

	var out []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, f := range Formats {
			p, ok := VariantPath(src, f)
			if !ok || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// IsSourceMIME reports whether mime is a JPEG or PNG type.
func IsSourceMIME(mime string) bool {
	mime = strings.ToLower(mime)
	return mime == MIMEJPEG || mime == MIMEPNG || mime == "image/jpg" || mime == "image/x-png"
}
