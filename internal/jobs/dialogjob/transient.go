package dialogjob

import (
	"errors"
	"strings"
)

var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"429",
	"too many requests",
}

var overloadMarkers = []string{
	"overloaded",
	"529",
}

// transientError is implemented by provider errors that carry a structured kind.
type transientError interface {
	Transient() bool
}

// IsTransient reports whether err is a rate-limit or overload signal. Structured provider
// errors decide on their own; anything else falls back to the known text markers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te transientError
	if errors.As(err, &te) {
		return te.Transient()
	}
	msg := err.Error()
	return IsRateLimitText(msg) || containsAny(msg, overloadMarkers)
}

// IsRateLimitText reports whether a stored error message indicates rate limiting.
func IsRateLimitText(msg string) bool {
	return containsAny(msg, rateLimitMarkers)
}

func containsAny(msg string, markers []string) bool {
	msg = strings.ToLower(msg)
	if msg == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
