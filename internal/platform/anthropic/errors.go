package anthropic

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindOverloaded      ErrorKind = "overloaded"
	KindTransport       ErrorKind = "transport"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindAPI             ErrorKind = "api"
)

// StatusOverloaded is the non-standard status the Messages API uses when capacity is exhausted.
const StatusOverloaded = 529

// Error is returned by every Client call that fails. Message keeps the provider's own wording
// (status code and error type) so persisted error text stays recognizable.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("anthropic")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " http %d", e.StatusCode)
	}
	if e.Type != "" {
		b.WriteString(" " + e.Type)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Transient reports whether the failure is expected to clear on its own.
func (e *Error) Transient() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindRateLimited || e.Kind == KindOverloaded
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae.Kind
	}
	return ""
}

func kindForStatus(status int, errType string) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests || errType == "rate_limit_error":
		return KindRateLimited
	case status == StatusOverloaded || status == http.StatusServiceUnavailable || errType == "overloaded_error":
		return KindOverloaded
	default:
		return KindAPI
	}
}
