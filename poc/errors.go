// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package poc

// ErrorKind identifies a kind of error that can be used to define new errors
// via const SomeError = poc.ErrorKind("something").
type ErrorKind string

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// The error kinds returned by the scoring core. Use errors.Is to test for them.
const (
	// ErrMalformedAttestation is a binary or JSON decode failure. The
	// attachment is rejected before it reaches the calculators.
	ErrMalformedAttestation = ErrorKind("malformed attestation")
	// ErrMissingConfiguration means a category, level or bucket key was absent
	// from the active weight table. The score update is rejected.
	ErrMissingConfiguration = ErrorKind("missing weight table configuration")
	// ErrUnrecognizedEnum is an unknown node type, service code or device
	// level code.
	ErrUnrecognizedEnum = ErrorKind("unrecognized enum value")
	// ErrUnknownTxType is a transaction type tag with no registered codec.
	ErrUnknownTxType = ErrorKind("unknown attestation transaction type")
	// ErrSizeMismatch means an encoder wrote a different number of bytes than
	// it declared.
	ErrSizeMismatch = ErrorKind("serialized size mismatch")
	// ErrDuplicateAttestation is an attestation already applied for the same
	// account at the same height.
	ErrDuplicateAttestation = ErrorKind("duplicate attestation")
)

// Error pairs an error with details.
type Error struct {
	wrapped error
	detail  string
}

// Error satisfies the error interface, combining the wrapped error message with
// the details.
func (e Error) Error() string {
	return e.wrapped.Error() + ": " + e.detail
}

// Unwrap returns the wrapped error, allowing errors.Is and errors.As to work.
func (e Error) Unwrap() error {
	return e.wrapped
}

// NewError wraps the provided Error with details in a Error, facilitating the
// use of errors.Is and errors.As via errors.Unwrap.
func NewError(err error, detail string) Error {
	return Error{
		wrapped: err,
		detail:  detail,
	}
}

// ErrorCloser is used to synchronize shutdown when an error is encountered in a
// multi-step process. After each successful step, a shutdown routine can be
// scheduled with Add. If Success is not signaled before Done, the shutdown
// routines will be run in the reverse order that they are added.
type ErrorCloser struct {
	closers []func() error
}

// NewErrorCloser creates a new ErrorCloser.
func NewErrorCloser() *ErrorCloser {
	return &ErrorCloser{
		closers: make([]func() error, 0, 3),
	}
}

// Add adds a new function to the queue.
func (e *ErrorCloser) Add(closer func() error) {
	e.closers = append(e.closers, closer)
}

// Success cancels the running of any Add'ed functions.
func (e *ErrorCloser) Success() {
	e.closers = nil
}

// Done runs the registered functions in reverse order if Success has not been
// called.
func (e *ErrorCloser) Done(log Logger) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Errorf("error running shutdown function %d: %v", i, err)
		}
	}
}
