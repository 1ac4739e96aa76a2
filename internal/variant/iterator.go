package variant

import (
	"context"
	"path/filepath"
	"time"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/metrics"
)

// TranscodeFormat walks ladder in order and returns the first accepted
// candidate, still at its temporary path. Rejected and failed candidates are
// deleted before the next attempt. An alpha or unsupported-format error stops
// the walk since no later rung can succeed.
func TranscodeFormat(ctx context.Context, enc Encoder, src *SourceImage, baseline Baseline,
	format Format, ladder Ladder, policy Policy, dst string) (*Candidate, error) {
	const op = "transcode"

	if len(ladder) == 0 {
		return nil, errorf(KindExhausted, op, src.Path, "empty ladder for %s", format)
	}

	var lastErr error
	for i, attempt := range ladder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		cand, err := enc.Encode(ctx, src, format, attempt, dst)
		metrics.TranscodeEncodeDuration.WithLabelValues(string(format), enc.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			removePartial(dst)
			kind := KindOf(err)
			switch kind {
			case KindAlphaUnsupported, KindUnsupportedFormat, KindEncoderUnavailable:
				metrics.TranscodeAttemptsTotal.WithLabelValues(string(format), enc.Name(), "unsupported").Inc()
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			metrics.TranscodeAttemptsTotal.WithLabelValues(string(format), enc.Name(), "error").Inc()
			logging.Warn("%s attempt %d/%d (%s) failed for %s: %v",
				format, i+1, len(ladder), attempt, filepath.Base(src.Path), err)
			lastErr = err
			continue
		}

		verdict := policy.Evaluate(cand, baseline)
		if verdict.Accepted {
			metrics.TranscodeAttemptsTotal.WithLabelValues(string(format), enc.Name(), "accepted").Inc()
			logging.Debug("%s attempt %d/%d (%s) accepted for %s: %d bytes, %s",
				format, i+1, len(ladder), attempt, filepath.Base(src.Path), cand.Bytes, verdict.Reason)
			return cand, nil
		}

		metrics.TranscodeAttemptsTotal.WithLabelValues(string(format), enc.Name(), "rejected").Inc()
		logging.Debug("%s attempt %d/%d (%s) rejected for %s: %s",
			format, i+1, len(ladder), attempt, filepath.Base(src.Path), verdict.Reason)
		cand.Discard()
	}

	if lastErr != nil {
		return nil, newError(KindExhausted, op, src.Path, lastErr)
	}
	return nil, errorf(KindExhausted, op, src.Path, "%d %s attempts rejected", len(ladder), format)
}
