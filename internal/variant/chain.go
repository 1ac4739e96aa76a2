package variant

import (
	"context"
	"path/filepath"

	"avif-everywhere/internal/logging"
)

// Outcome holds the accepted candidates for one asset. Candidates are still at
// their temporary paths until the Recorder promotes them.
type Outcome struct {
	AVIF *Candidate
	WebP *Candidate
	// Skipped records why a format produced nothing.
	Skipped map[Format]string
}

// Candidates returns the accepted candidates in priority order.
func (o *Outcome) Candidates() []*Candidate {
	var out []*Candidate
	if o.AVIF != nil {
		out = append(out, o.AVIF)
	}
	if o.WebP != nil {
		out = append(out, o.WebP)
	}
	return out
}

// Discard deletes every candidate still held by the outcome.
func (o *Outcome) Discard() {
	for _, c := range o.Candidates() {
		c.Discard()
	}
}

// Chain runs the AVIF-then-WebP fallback for one asset.
type Chain struct {
	Caps    Capabilities
	CLI     Encoder
	Library Encoder

	AVIFLadder  Ladder
	WebPAttempt AttemptSpec

	AVIFPolicy     Policy
	WebPPolicy     Policy
	LosslessPolicy Policy
}

// NewChain builds a Chain with the default ladders and policies.
func NewChain(caps Capabilities, cli, library Encoder, avifMinSavings float64) *Chain {
	return &Chain{
		Caps:           caps,
		CLI:            cli,
		Library:        library,
		AVIFLadder:     DefaultAVIFLadder,
		WebPAttempt:    DefaultWebPAttempt,
		AVIFPolicy:     Policy{MinSavings: avifMinSavings},
		WebPPolicy:     Policy{Unconditional: true},
		LosslessPolicy: Policy{},
	}
}

// WithMaxBytes returns a copy of the chain with the hard cap applied to every
// policy.
func (c *Chain) WithMaxBytes(n int64) *Chain {
	cp := *c
	cp.AVIFPolicy = c.AVIFPolicy.WithMaxBytes(n)
	cp.WebPPolicy = c.WebPPolicy.WithMaxBytes(n)
	cp.LosslessPolicy = c.LosslessPolicy.WithMaxBytes(n)
	return &cp
}

// TranscodeAsset produces at most one AVIF and one WebP candidate. It fails
// only when neither format yields anything; no temporary file is left behind
// on failure.
func (c *Chain) TranscodeAsset(ctx context.Context, src *SourceImage, baseline Baseline) (*Outcome, error) {
	const op = "transcode asset"

	avifDst, ok := VariantPath(src.Path, FormatAVIF)
	if !ok {
		return nil, errorf(KindUnsupportedFormat, op, src.Path, "not a JPEG or PNG path")
	}
	webpDst, _ := VariantPath(src.Path, FormatWebP)

	out := &Outcome{Skipped: make(map[Format]string)}
	ran := false
	name := filepath.Base(src.Path)

	if c.Caps.CLIAvailable && c.CLI != nil && src.IsPNG() && !src.HasAlpha {
		ran = true
		cand, err := TranscodeFormat(ctx, c.CLI, src, baseline, FormatAVIF,
			Ladder{LosslessAttempt}, c.LosslessPolicy, TempPath(avifDst))
		if ctx.Err() != nil {
			cand.Discard()
			return nil, ctx.Err()
		}
		if err != nil {
			logging.Debug("Lossless AVIF not used for %s: %v", name, err)
			out.Skipped[FormatAVIF] = Reason(err)
		} else {
			out.AVIF = cand
		}
	}

	if out.AVIF == nil {
		switch {
		case src.HasAlpha:
			out.Skipped[FormatAVIF] = KindAlphaUnsupported.Reason()
		case !c.Caps.AVIFSupported || c.Library == nil:
			if _, tried := out.Skipped[FormatAVIF]; !tried {
				out.Skipped[FormatAVIF] = KindEncoderUnavailable.Reason()
			}
		default:
			ran = true
			cand, err := TranscodeFormat(ctx, c.Library, src, baseline, FormatAVIF,
				c.AVIFLadder, c.AVIFPolicy, TempPath(avifDst))
			if ctx.Err() != nil {
				cand.Discard()
				return nil, ctx.Err()
			}
			if err != nil {
				logging.Debug("AVIF omitted for %s: %v", name, err)
				out.Skipped[FormatAVIF] = Reason(err)
			} else {
				out.AVIF = cand
				delete(out.Skipped, FormatAVIF)
			}
		}
	}

	if c.Caps.WebPSupported && c.Library != nil {
		ran = true
		cand, err := TranscodeFormat(ctx, c.Library, src, baseline, FormatWebP,
			Ladder{c.WebPAttempt}, c.WebPPolicy, TempPath(webpDst))
		if ctx.Err() != nil {
			cand.Discard()
			out.Discard()
			return nil, ctx.Err()
		}
		if err != nil {
			logging.Debug("WebP omitted for %s: %v", name, err)
			out.Skipped[FormatWebP] = Reason(err)
		} else {
			out.WebP = cand
		}
	} else {
		out.Skipped[FormatWebP] = KindEncoderUnavailable.Reason()
	}

	if out.AVIF == nil && out.WebP == nil {
		kind := KindExhausted
		if !ran {
			kind = KindEncoderUnavailable
			if src.HasAlpha && c.Caps.AVIFSupported {
				kind = KindAlphaUnsupported
			}
		}
		return nil, errorf(kind, op, src.Path, "avif: %s, webp: %s",
			out.Skipped[FormatAVIF], out.Skipped[FormatWebP])
	}
	return out, nil
}
