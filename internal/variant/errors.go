package variant

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Callers branch on Kind, never on messages.
type Kind int

const (
	// KindUnknown is used for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindSourceMissing means neither the original nor the given path exists.
	KindSourceMissing
	// KindInvalidBaseline means the reference file is absent or implausibly small.
	KindInvalidBaseline
	// KindUnsupportedFormat means the encoder or source format is not supported.
	KindUnsupportedFormat
	// KindAlphaUnsupported means the source has transparency the target cannot keep safely.
	KindAlphaUnsupported
	// KindExhausted means no ladder entry produced an acceptable candidate.
	KindExhausted
	// KindEncoderUnavailable means no encoder could run at all.
	KindEncoderUnavailable
	// KindEncodeFailed means a single encode call failed.
	KindEncodeFailed
)

func (k Kind) String() string {
	switch k {
	case KindSourceMissing:
		return "source_missing"
	case KindInvalidBaseline:
		return "invalid_baseline"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindAlphaUnsupported:
		return "alpha_unsupported"
	case KindExhausted:
		return "exhausted"
	case KindEncoderUnavailable:
		return "encoder_unavailable"
	case KindEncodeFailed:
		return "encode_failed"
	default:
		return "unknown"
	}
}

// Reason is the user-facing sentence for the kind, suitable for a UI as-is.
func (k Kind) Reason() string {
	switch k {
	case KindSourceMissing:
		return "source missing"
	case KindInvalidBaseline:
		return "reference baseline invalid"
	case KindUnsupportedFormat:
		return "unsupported image format"
	case KindAlphaUnsupported:
		return "transparent image cannot be encoded to this format"
	case KindExhausted:
		return "no candidate beat the size budget"
	case KindEncoderUnavailable:
		return "no encoder available"
	case KindEncodeFailed:
		return "encoding failed"
	default:
		return "conversion failed"
	}
}

// Error is the tagged error type returned by the engine.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Reason()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the user-facing failure reason for any error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrDisabled) {
		return "conversion disabled"
	}
	return KindOf(err).Reason()
}

// ErrDisabled is returned by Service when conversions are switched off.
var ErrDisabled = errors.New("variant generation is disabled")

// ErrAssetNotFound is returned by AssetSource implementations for unknown ids.
var ErrAssetNotFound = errors.New("asset not found")

// errorf is a small helper for wrapping lower-level errors with context.
func errorf(kind Kind, op, path, format string, args ...interface{}) *Error {
	return newError(kind, op, path, fmt.Errorf(format, args...))
}
