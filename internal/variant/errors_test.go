package variant

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := newError(KindAlphaUnsupported, "vips encode", "/u/a.png", nil)
	wrapped := fmt.Errorf("convert asset 7: %w", base)

	if got := KindOf(wrapped); got != KindAlphaUnsupported {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindAlphaUnsupported)
	}
	if got := KindOf(errBoom); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want unknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want unknown", got)
	}
}

func TestErrorIsMatchesKindTemplate(t *testing.T) {
	err := fmt.Errorf("outer: %w", errorf(KindExhausted, "transcode", "/u/a.jpg", "3 attempts rejected"))

	if !errors.Is(err, &Error{Kind: KindExhausted}) {
		t.Error("errors.Is should match a bare kind template")
	}
	if errors.Is(err, &Error{Kind: KindSourceMissing}) {
		t.Error("errors.Is should not match a different kind")
	}
	if errors.Is(err, &Error{Kind: KindExhausted, Op: "other"}) {
		t.Error("a template with Op set is not a bare kind template")
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	err := newError(KindEncodeFailed, "avifenc", "/u/a.png", errBoom)
	msg := err.Error()
	for _, part := range []string{"avifenc", "encoding failed", "/u/a.png", "boom"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
	if !errors.Is(err, errBoom) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"disabled", fmt.Errorf("x: %w", ErrDisabled), "conversion disabled"},
		{"missing", newError(KindSourceMissing, "locate", "", nil), "source missing"},
		{"plain", errBoom, "conversion failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindStringsAreDistinct(t *testing.T) {
	seen := make(map[string]Kind)
	for k := KindUnknown; k <= KindEncodeFailed; k++ {
		if prev, ok := seen[k.String()]; ok {
			t.Errorf("kinds %d and %d share String() %q", prev, k, k.String())
		}
		seen[k.String()] = k
		if k.Reason() == "" {
			t.Errorf("kind %v has empty Reason()", k)
		}
	}
}
