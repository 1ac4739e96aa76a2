package variant

import (
	"context"

	"avif-everywhere/internal/filesystem"
)

// MinBaselineBytes is the smallest reference size treated as plausible.
// A hollow reference would make every candidate look like a saving.
const MinBaselineBytes = 1000

// ResolveBaseline computes the size a candidate must beat. In skip mode the
// check is bypassed without touching the filesystem.
func ResolveBaseline(ctx context.Context, src *SourceImage, mode Mode) (Baseline, error) {
	const op = "resolve baseline"

	if mode == ModeSkip {
		return Baseline{Origin: OriginSkipped}, nil
	}

	ref := Baseline{Path: src.Path, Origin: OriginOriginal}
	if scaled := ScaledPath(src.Path); scaled != src.Path && fileExists(ctx, scaled) {
		ref = Baseline{Path: scaled, Origin: OriginScaledSibling}
	}

	info, err := filesystem.StatWithRetry(ref.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		return Baseline{}, newError(KindInvalidBaseline, op, ref.Path, err)
	}
	ref.Bytes = info.Size()

	if ref.Bytes < MinBaselineBytes {
		return Baseline{}, errorf(KindInvalidBaseline, op, ref.Path,
			"reference is %d bytes, need at least %d", ref.Bytes, MinBaselineBytes)
	}
	return ref, nil
}
