package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for retry and reporting decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindNotFound
	KindAccessDenied
	KindRateLimited
	KindServerError
	KindSizeExceeded
)

// String returns a stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindSizeExceeded:
		return "size_exceeded"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	Kind    Kind
	Locator string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Locator, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Locator, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err with a kind and locator.
func newError(kind Kind, locator string, err error) *Error {
	return &Error{Kind: kind, Locator: locator, Err: err}
}

// KindOf extracts the failure kind from an error chain. Errors that are not
// fetch errors report KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// AggregateError is returned when every capable strategy exhausted its
// retries. It names the last failure and retains one error per strategy.
type AggregateError struct {
	Locator  string
	Attempts []error
}

func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("fetch %s: no capable strategy", e.Locator)
	}
	return fmt.Sprintf("fetch %s: all %d strategies failed, last: %v",
		e.Locator, len(e.Attempts), e.Attempts[len(e.Attempts)-1])
}

func (e *AggregateError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}
