package variant

import (
	"strconv"
	"time"
)

// Format is a next-generation output format.
type Format string

const (
	// FormatAVIF is the preferred output format.
	FormatAVIF Format = "avif"
	// FormatWebP is the fallback output format.
	FormatWebP Format = "webp"
)

// Formats lists output formats in priority order.
var Formats = []Format{FormatAVIF, FormatWebP}

// Ext returns the file extension for the format, including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// MIME returns the content type of the format.
func (f Format) MIME() string {
	return "image/" + string(f)
}

// Valid reports whether f is a known output format.
func (f Format) Valid() bool {
	return f == FormatAVIF || f == FormatWebP
}

// Source MIME types accepted by the engine.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// SourceImage describes the full-resolution input image. It is never modified
// after Locate returns it.
type SourceImage struct {
	Path     string `json:"path"`
	MIME     string `json:"mime"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int64  `json:"bytes"`
	HasAlpha bool   `json:"hasAlpha"`
}

// IsPNG reports whether the source is a PNG.
func (s *SourceImage) IsPNG() bool {
	return s.MIME == MIMEPNG
}

// Mode selects how the reference baseline is computed.
type Mode string

const (
	// ModeCompare requires candidates to beat the downsized sibling (or the
	// original). Used for retroactive batch runs.
	ModeCompare Mode = "compare"
	// ModeSkip accepts any produced candidate. Used for fresh uploads.
	ModeSkip Mode = "skip"
)

// ParseMode converts a query or flag value into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeCompare, "":
		return ModeCompare, true
	case ModeSkip:
		return ModeSkip, true
	}
	return "", false
}

// BaselineOrigin records which file the baseline size came from.
type BaselineOrigin string

const (
	OriginScaledSibling BaselineOrigin = "downsized-sibling"
	OriginOriginal      BaselineOrigin = "original"
	OriginSkipped       BaselineOrigin = "skipped"
)

// Baseline is the byte size a candidate has to beat.
type Baseline struct {
	Bytes  int64          `json:"bytes"`
	Origin BaselineOrigin `json:"origin"`
	Path   string         `json:"path,omitempty"`
}

// Skipped reports whether the baseline check is bypassed.
func (b Baseline) Skipped() bool {
	return b.Origin == OriginSkipped
}

// AttemptSpec is one rung of an encode ladder. A lossless attempt encodes at
// native resolution and ignores MaxDimension and Quality.
type AttemptSpec struct {
	MaxDimension int  `json:"maxDimension"`
	Quality      int  `json:"quality"`
	Lossless     bool `json:"lossless,omitempty"`
}

// LosslessAttempt is the single attempt used by the command-line encoder.
var LosslessAttempt = AttemptSpec{Lossless: true}

// QualityLabel is the quality as stored in variant records.
func (a AttemptSpec) QualityLabel() string {
	if a.Lossless {
		return "lossless"
	}
	return strconv.Itoa(a.Quality)
}

// ResizeLabel is the resolution cap as stored in variant records.
func (a AttemptSpec) ResizeLabel() string {
	if a.Lossless || a.MaxDimension <= 0 {
		return "native"
	}
	return strconv.Itoa(a.MaxDimension)
}

func (a AttemptSpec) String() string {
	if a.Lossless {
		return "lossless@native"
	}
	return "q" + a.QualityLabel() + "@" + a.ResizeLabel()
}

// Ladder is an ordered list of attempts, most aggressive first.
type Ladder []AttemptSpec

// DefaultAVIFLadder is tried top to bottom until a candidate is accepted.
var DefaultAVIFLadder = Ladder{
	{MaxDimension: 3000, Quality: 50},
	{MaxDimension: 2400, Quality: 45},
	{MaxDimension: 2000, Quality: 40},
}

// DefaultWebPAttempt is the single fixed WebP attempt.
var DefaultWebPAttempt = AttemptSpec{MaxDimension: 2000, Quality: 65}

// Candidate is an encoded file waiting for an accept/reject decision.
type Candidate struct {
	Format   Format      `json:"format"`
	Bytes    int64       `json:"bytes"`
	TempPath string      `json:"-"`
	Attempt  AttemptSpec `json:"attempt"`
	Encoder  string      `json:"encoder"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
}

// VariantRecord is the durable description of an accepted variant.
type VariantRecord struct {
	AssetID        int64     `json:"assetId"`
	Format         Format    `json:"format"`
	Path           string    `json:"path"`
	URL            string    `json:"url"`
	Bytes          int64     `json:"bytes"`
	Quality        string    `json:"quality"`
	Resize         string    `json:"resize"`
	SavingsPercent *int      `json:"savingsPercent"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Capabilities describes which encoders the host can run. It is probed once
// and passed into the Chain so decisions stay deterministic.
type Capabilities struct {
	CLIAvailable  bool `json:"cliAvailable"`
	AVIFSupported bool `json:"avifSupported"`
	WebPSupported bool `json:"webpSupported"`
}

// Supports reports whether the library encoder can produce format.
func (c Capabilities) Supports(format Format) bool {
	switch format {
	case FormatAVIF:
		return c.AVIFSupported
	case FormatWebP:
		return c.WebPSupported
	}
	return false
}

// Any reports whether at least one encode path is usable.
func (c Capabilities) Any() bool {
	return c.CLIAvailable || c.AVIFSupported || c.WebPSupported
}
