package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/32bitkid/retrofmt/compression"
	"github.com/32bitkid/retrofmt/screen"
)

// Kind classifies a codec failure. Kinds are errors themselves so that
// errors.Is(err, codec.ErrTruncated) works on any returned error.
type Kind uint8

const (
	KindFormatMismatch Kind = iota + 1
	KindTruncated
	KindMalformed
	KindIOFailure
	KindUnsupported
	KindTooLarge
)

var (
	ErrFormatMismatch error = KindFormatMismatch
	ErrTruncated      error = KindTruncated
	ErrMalformed      error = KindMalformed
	ErrIOFailure      error = KindIOFailure
	ErrUnsupported    error = KindUnsupported
	ErrTooLarge       error = KindTooLarge

	ErrUnknownFormat = errors.New("codec: unknown format")
)

func (k Kind) Error() string {
	switch k {
	case KindFormatMismatch:
		return "format mismatch"
	case KindTruncated:
		return "truncated"
	case KindMalformed:
		return "malformed"
	case KindIOFailure:
		return "i/o failure"
	case KindUnsupported:
		return "unsupported"
	case KindTooLarge:
		return "too large"
	}
	return "unknown error"
}

// Error is returned by every Test, Load and Save.
type Error struct {
	Kind   Kind
	Format Format
	Op     string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Format.String()
	if e.Op != "" {
		msg += " " + e.Op
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func mismatch(format string, args ...interface{}) error {
	return &Error{Kind: KindFormatMismatch, Err: fmt.Errorf(format, args...)}
}

func malformed(format string, args ...interface{}) error {
	return &Error{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

func truncated(format string, args ...interface{}) error {
	return &Error{Kind: KindTruncated, Err: fmt.Errorf(format, args...)}
}

func unsupported(format string, args ...interface{}) error {
	return &Error{Kind: KindUnsupported, Err: fmt.Errorf(format, args...)}
}

// classify turns whatever a codec returned into an *Error tagged with the
// format and operation.
func classify(f Format, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Format == FormatUnknown {
			e.Format = f
		}
		if e.Op == "" {
			e.Op = op
		}
		return e
	}

	kind := KindIOFailure
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind = KindTruncated
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	case errors.Is(err, screen.ErrTooLarge):
		kind = KindTooLarge
	case errors.Is(err, screen.ErrEmpty),
		errors.Is(err, screen.ErrNoLayer),
		errors.Is(err, compression.ErrPackBitsOverflow),
		errors.Is(err, compression.ErrPackBytesOverflow),
		errors.Is(err, compression.ErrRLEOverrun),
		errors.Is(err, compression.ErrLZWBadCode),
		errors.Is(err, compression.ErrLZWTableFull),
		errors.Is(err, compression.ErrLZWLiteralSize),
		errors.Is(err, compression.ErrPixelDepth):
		kind = KindMalformed
	}
	return &Error{Kind: kind, Format: f, Op: op, Err: err}
}
