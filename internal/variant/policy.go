package variant

import "fmt"

// DefaultAVIFMinSavings is the fraction an AVIF candidate must save over
// the baseline.
const DefaultAVIFMinSavings = 0.2

// Policy decides whether a candidate is kept.
type Policy struct {
	// MinSavings is the required fraction below the baseline. Zero means
	// "strictly smaller than the baseline".
	MinSavings float64
	// MaxBytes is a hard cap applied in every mode. Zero disables it.
	MaxBytes int64
	// Unconditional accepts anything under the cap, even in compare mode.
	Unconditional bool
}

// Verdict is the outcome of Policy.Evaluate.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Evaluate applies the size cap first, then the savings check.
func (p Policy) Evaluate(c *Candidate, baseline Baseline) Verdict {
	if p.MaxBytes > 0 && c.Bytes > p.MaxBytes {
		return Verdict{Reason: fmt.Sprintf("exceeds max size (%d > %d bytes)", c.Bytes, p.MaxBytes)}
	}
	if baseline.Skipped() {
		return Verdict{Accepted: true, Reason: "baseline skipped"}
	}
	if p.Unconditional {
		return Verdict{Accepted: true, Reason: "accepted unconditionally"}
	}

	budget := float64(baseline.Bytes) * (1 - p.MinSavings)
	if float64(c.Bytes) < budget {
		return Verdict{Accepted: true, Reason: fmt.Sprintf("%d < %.0f bytes", c.Bytes, budget)}
	}
	return Verdict{Reason: fmt.Sprintf("not small enough (%d >= %.0f bytes)", c.Bytes, budget)}
}

// WithMaxBytes returns a copy of p with the hard cap replaced.
func (p Policy) WithMaxBytes(n int64) Policy {
	p.MaxBytes = n
	return p
}
