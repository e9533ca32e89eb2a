package platform

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyCommon(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"revoked token", token.ErrRevoked, ClassPermanent},
		{"account not linked", token.ErrNotLinked, ClassPermanent},
		{"poll timeout", ErrPollTimeout, ClassTransient},
		{"context deadline", context.DeadlineExceeded, ClassTransient},
		{"network timeout", timeoutErr{}, ClassTransient},
		{"rate limited", &Error{HTTPStatus: 429}, ClassTransient},
		{"server error", &Error{HTTPStatus: 503}, ClassTransient},
		{"bad request", &Error{HTTPStatus: 400}, ClassPermanent},
		{"forbidden", &Error{HTTPStatus: 403}, ClassPermanent},
		{"unknown error shape", errors.New("something odd"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCommon(tt.err))
		})
	}
}

func TestClassifyCommonWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("upload media"), token.ErrRevoked)
	assert.Equal(t, ClassPermanent, classifyCommon(wrapped))
}

func TestTiktokClassifyError(t *testing.T) {
	a := NewTiktokAdapter(nil)

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"rate limit code", &Error{Code: "rate_limit_exceeded", HTTPStatus: 429}, ClassTransient},
		{"spam throttle code", &Error{Code: "spam_risk_too_many_posts", HTTPStatus: 403}, ClassTransient},
		{"bad token code", &Error{Code: "access_token_invalid", HTTPStatus: 401}, ClassPermanent},
		{"bad video code", &Error{Code: "video_format_check_failed", HTTPStatus: 400}, ClassPermanent},
		{"unknown code falls back to status", &Error{Code: "brand_new_code", HTTPStatus: 500}, ClassTransient},
		{"no code falls back to status", &Error{HTTPStatus: 404}, ClassPermanent},
		{"poll timeout", ErrPollTimeout, ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyError(tt.err))
		})
	}
}

func TestInstagramClassifyError(t *testing.T) {
	a := NewInstagramAdapter(nil)

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"api throttling", &Error{Code: "4", HTTPStatus: 400}, ClassTransient},
		{"user rate limit", &Error{Code: "17", HTTPStatus: 400}, ClassTransient},
		{"invalid parameter", &Error{Code: "100", HTTPStatus: 400}, ClassPermanent},
		{"expired token", &Error{Code: "190", HTTPStatus: 401}, ClassPermanent},
		{"permission denied", &Error{Code: "200", HTTPStatus: 403}, ClassPermanent},
		{"unknown code falls back to status", &Error{Code: "99999", HTTPStatus: 500}, ClassTransient},
		{"non-numeric code falls back", &Error{Code: "weird", HTTPStatus: 422}, ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyError(tt.err))
		})
	}
}

func TestYoutubeClassifyError(t *testing.T) {
	a := NewYoutubeAdapter(nil)

	quota := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
	}
	assert.Equal(t, ClassTransient, a.ClassifyError(quota))

	forbidden := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "forbidden"}},
	}
	assert.Equal(t, ClassPermanent, a.ClassifyError(forbidden))

	backend := &googleapi.Error{Code: 500}
	assert.Equal(t, ClassTransient, a.ClassifyError(backend))

	assert.Equal(t, ClassPermanent, a.ClassifyError(token.ErrRevoked))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "permanent", ClassPermanent.String())
}

func TestErrorMessage(t *testing.T) {
	withCode := &Error{Platform: models.PlatformTiktok, Code: "spam_risk", Message: "rejected"}
	assert.Contains(t, withCode.Error(), "spam_risk")

	withoutCode := &Error{Platform: models.PlatformInstagram, HTTPStatus: 500, Message: "boom"}
	assert.Contains(t, withoutCode.Error(), "http 500")
}

func TestRegistryResolve(t *testing.T) {
	tiktok := NewTiktokAdapter(nil)
	registry := NewRegistry(tiktok)

	got, err := registry.Resolve(models.PlatformTiktok)
	assert.NoError(t, err)
	assert.Same(t, tiktok, got)

	_, err = registry.Resolve(models.PlatformYoutube)
	assert.Error(t, err)
}
