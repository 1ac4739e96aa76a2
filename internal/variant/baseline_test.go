package variant

import (
	"context"
	"path/filepath"
	"testing"
)

func TestResolveBaseline(t *testing.T) {
	tests := []struct {
		name       string
		original   int
		sibling    int // 0 means no scaled sibling
		mode       Mode
		wantBytes  int64
		wantOrigin BaselineOrigin
		wantKind   Kind
	}{
		{"prefers scaled sibling", 50000, 20000, ModeCompare, 20000, OriginScaledSibling, KindUnknown},
		{"falls back to original", 50000, 0, ModeCompare, 50000, OriginOriginal, KindUnknown},
		{"sibling too small", 50000, 999, ModeCompare, 0, "", KindInvalidBaseline},
		{"original too small", 500, 0, ModeCompare, 0, "", KindInvalidBaseline},
		{"exactly minimum is fine", MinBaselineBytes, 0, ModeCompare, MinBaselineBytes, OriginOriginal, KindUnknown},
		{"skip mode ignores sizes", 10, 0, ModeSkip, 0, OriginSkipped, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			original := filepath.Join(dir, "photo.jpg")
			writeSized(t, original, tt.original)
			if tt.sibling > 0 {
				writeSized(t, filepath.Join(dir, "photo-scaled.jpg"), tt.sibling)
			}

			src := &SourceImage{Path: original, MIME: MIMEJPEG}
			got, err := ResolveBaseline(context.Background(), src, tt.mode)

			if tt.wantKind != KindUnknown {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("ResolveBaseline() error = %v, want kind %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveBaseline() error = %v", err)
			}
			if got.Bytes != tt.wantBytes || got.Origin != tt.wantOrigin {
				t.Errorf("ResolveBaseline() = %+v, want %d bytes from %s", got, tt.wantBytes, tt.wantOrigin)
			}
		})
	}
}

func TestResolveBaselineSkipTouchesNothing(t *testing.T) {
	src := &SourceImage{Path: filepath.Join(t.TempDir(), "missing.jpg")}
	b, err := ResolveBaseline(context.Background(), src, ModeSkip)
	if err != nil {
		t.Fatalf("skip mode must not fail on a missing file: %v", err)
	}
	if !b.Skipped() {
		t.Error("Skipped() = false in skip mode")
	}
}

func TestResolveBaselineMissing(t *testing.T) {
	src := &SourceImage{Path: filepath.Join(t.TempDir(), "missing.jpg")}
	_, err := ResolveBaseline(context.Background(), src, ModeCompare)
	if KindOf(err) != KindInvalidBaseline {
		t.Errorf("error = %v, want invalid baseline", err)
	}
}
