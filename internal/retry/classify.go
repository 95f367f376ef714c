// Package retry drives calls against the generative model: it classifies
// failures, computes backoff delays, and runs the bounded attempt loop.
package retry

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorClass buckets a failure for the retry decision.
type ErrorClass string

const (
	ClassRateLimit  ErrorClass = "rate_limit"
	ClassParse      ErrorClass = "parse"
	ClassNetwork    ErrorClass = "network"
	ClassValidation ErrorClass = "validation"
	ClassAuth       ErrorClass = "auth"
	ClassUnknown    ErrorClass = "unknown"
)

// statusCarrier is implemented by transport errors that know their HTTP
// status (gemini.StatusError). Classifying by status is preferred over
// message matching whenever the error exposes one.
type statusCarrier interface {
	HTTPStatus() int
}

// Classify assigns an error to an ErrorClass. Errors carrying an HTTP
// status are classified structurally; everything else falls back to
// substring matching on the lowercased message. Message matching is
// brittle by nature, but it is the only contract available for errors
// that originate outside the transport (sanitization, empty payloads).
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var sc statusCarrier
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusTooManyRequests:
			return ClassRateLimit
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return ClassAuth
		case status == http.StatusRequestTimeout || status >= 500:
			return ClassNetwork
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return ClassRateLimit
	case strings.Contains(msg, "parse"), strings.Contains(msg, "json"), strings.Contains(msg, "invalid"):
		return ClassParse
	case strings.Contains(msg, "network"), strings.Contains(msg, "fetch"), strings.Contains(msg, "timeout"):
		return ClassNetwork
	case strings.Contains(msg, "validation"):
		return ClassValidation
	case strings.Contains(msg, "auth"), strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return ClassAuth
	default:
		return ClassUnknown
	}
}

// Retryable reports whether a class is worth another attempt. Auth failures
// never recover on retry. Unknown failures are treated as fatal too: some
// are transient, but retrying an unrecognized failure mode risks hammering
// an upstream that is telling us something we don't understand.
func Retryable(class ErrorClass) bool {
	switch class {
	case ClassRateLimit, ClassParse, ClassNetwork, ClassValidation:
		return true
	default:
		return false
	}
}
