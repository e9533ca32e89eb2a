package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
)

// ErrorClass is the two-valued taxonomy governing retry eligibility.
type ErrorClass int

const (
	// ClassTransient errors are eligible for re-delivery with backoff:
	// rate limits, timeouts, 5xx.
	ClassTransient ErrorClass = iota
	// ClassPermanent errors fail the task immediately: revoked credentials,
	// rejected content, 4xx other than rate limiting.
	ClassPermanent
)

func (c ErrorClass) String() string {
	if c == ClassPermanent {
		return "permanent"
	}
	return "transient"
}

// Error is a platform API failure carrying enough detail for the task's
// error log: the platform's own error code, the HTTP status and the raw
// response body.
type Error struct {
	Platform   models.Platform
	Code       string
	HTTPStatus int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Platform, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s (http %d)", e.Platform, e.Message, e.HTTPStatus)
}

// ErrPollTimeout means media processing did not finish inside the polling
// budget. Processing may simply be slow, so this is always transient.
var ErrPollTimeout = errors.New("media processing poll timed out")

// classifyCommon handles the error shapes shared by every adapter: token
// errors, poll timeouts, network failures and the default HTTP status
// mapping. Adapters consult their own code tables first and fall back here.
func classifyCommon(err error) ErrorClass {
	switch {
	case errors.Is(err, token.ErrRevoked), errors.Is(err, token.ErrNotLinked):
		return ClassPermanent
	case errors.Is(err, ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	var platformErr *Error
	if errors.As(err, &platformErr) {
		return classifyHTTPStatus(platformErr.HTTPStatus)
	}

	// unknown shapes are usually I/O; retrying is the safer default
	return ClassTransient
}

func classifyHTTPStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassTransient
	case status >= 500:
		return ClassTransient
	case status >= 400:
		return ClassPermanent
	default:
		return ClassTransient
	}
}
