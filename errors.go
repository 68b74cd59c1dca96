package pe

import "github.com/pkg/errors"

var (
	ErrIO                  = errors.New("source is unreadable")
	ErrTruncatedRead       = errors.New("read exceeds the end of the source")
	ErrInvalidDosSignature = errors.New("invalid DOS signature, MZ not found")
	ErrInvalidPeSignature  = errors.New("not a valid PE signature. Magic not found")
	ErrTruncatedHeader     = errors.New("optional header too small for its data directories")
)

var (
	ErrUnmappedRva        = errors.New("rva is not covered by any section")
	ErrUnterminatedString = errors.New("string has no terminator within the maximum length")
	ErrSectionNotFound    = errors.New("section not found")
)

// ioError is a failure of the underlying byte source. It matches ErrIO and
// unwraps to the cause.
type ioError struct {
	err error
}

func newIOError(err error) error {
	return &ioError{err: err}
}

func (e *ioError) Error() string {
	return ErrIO.Error() + ": " + e.err.Error()
}

func (e *ioError) Unwrap() error {
	return e.err
}

func (e *ioError) Is(target error) bool {
	return target == ErrIO
}
