package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
	"github.com/stick95/fanpost/internal/transfer"
)

const (
	instagramBaseURL = "https://graph.facebook.com/v21.0"

	// Instagram pulls media from a URL in one call; anything above this is
	// rejected up front instead of burning an upload attempt.
	instagramMaxMediaSize = int64(1024 * 1024 * 1024)

	instagramPollInitial = 3 * time.Second
	instagramPollMax     = 30 * time.Second
	instagramPollBudget  = 300 * time.Second

	instagramStatusFinished = "FINISHED"
	instagramStatusError    = "ERROR"
)

// Graph API error codes. Code 4 and 17 are rate/usage throttling, 190 is an
// invalid or expired token, 100 is an invalid parameter.
var instagramErrorClass = map[int]ErrorClass{
	1:   ClassTransient,
	2:   ClassTransient,
	4:   ClassTransient,
	17:  ClassTransient,
	32:  ClassTransient,
	100: ClassPermanent,
	190: ClassPermanent,
	200: ClassPermanent,
}

// InstagramAdapter uses the Graph API container flow: a single PULL-from-URL
// call creates a media container, processing status is polled until the
// container is ready, then the container is published.
type InstagramAdapter struct {
	tokens  token.Provider
	client  *http.Client
	baseURL string

	pollInitial time.Duration
	pollMax     time.Duration
	pollBudget  time.Duration
}

func NewInstagramAdapter(tokens token.Provider) *InstagramAdapter {
	return &InstagramAdapter{
		tokens:      tokens,
		client:      &http.Client{Timeout: 2 * time.Minute},
		baseURL:     instagramBaseURL,
		pollInitial: instagramPollInitial,
		pollMax:     instagramPollMax,
		pollBudget:  instagramPollBudget,
	}
}

func (a *InstagramAdapter) Platform() models.Platform {
	return models.PlatformInstagram
}

func (a *InstagramAdapter) Authenticate(ctx context.Context, accountID string) (*token.Credential, error) {
	return a.tokens.GetCredential(ctx, models.DestinationRef{Platform: models.PlatformInstagram, AccountID: accountID})
}

// UploadMedia creates the media container and waits for processing to
// finish. The platform pulls the bytes itself from media.URL.
func (a *InstagramAdapter) UploadMedia(ctx context.Context, cred *token.Credential, media *MediaSource) (MediaHandle, error) {
	r, size, err := media.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	r.Close()

	if size > instagramMaxMediaSize {
		return "", &Error{
			Platform:   models.PlatformInstagram,
			HTTPStatus: http.StatusBadRequest,
			Message:    fmt.Sprintf("media size %d exceeds platform limit %d", size, instagramMaxMediaSize),
		}
	}

	params := url.Values{}
	params.Set("media_type", "REELS")
	params.Set("video_url", media.URL)
	params.Set("access_token", cred.AccessToken)

	var container transfer.InstagramContainerResponse
	if err := a.call(ctx, http.MethodPost, fmt.Sprintf("/%s/media", cred.AccountID), params, &container); err != nil {
		return "", err
	}
	if container.ID == "" {
		return "", &Error{Platform: models.PlatformInstagram, Message: "container creation returned no id"}
	}

	if err := a.waitForContainer(ctx, cred, container.ID); err != nil {
		return "", err
	}

	return MediaHandle(container.ID), nil
}

func (a *InstagramAdapter) waitForContainer(ctx context.Context, cred *token.Credential, containerID string) error {
	return pollUntil(ctx, a.pollInitial, a.pollMax, a.pollBudget, func(ctx context.Context) (bool, error) {
		params := url.Values{}
		params.Set("fields", "status_code")
		params.Set("access_token", cred.AccessToken)

		var status transfer.InstagramContainerStatus
		if err := a.call(ctx, http.MethodGet, "/"+containerID, params, &status); err != nil {
			return false, err
		}

		switch status.StatusCode {
		case instagramStatusFinished:
			return true, nil
		case instagramStatusError:
			return false, &Error{Platform: models.PlatformInstagram, Message: "container processing failed"}
		default:
			return false, nil
		}
	})
}

func (a *InstagramAdapter) Publish(ctx context.Context, cred *token.Credential, handle MediaHandle, caption string) (*PublishResult, error) {
	params := url.Values{}
	params.Set("creation_id", string(handle))
	params.Set("caption", caption)
	params.Set("access_token", cred.AccessToken)

	var publish transfer.InstagramPublishResponse
	if err := a.call(ctx, http.MethodPost, fmt.Sprintf("/%s/media_publish", cred.AccountID), params, &publish); err != nil {
		return nil, err
	}
	if publish.ID == "" {
		return nil, &Error{Platform: models.PlatformInstagram, Message: "publish returned no media id"}
	}

	return &PublishResult{
		PostRef:   publish.ID,
		Permalink: fmt.Sprintf("https://www.instagram.com/reel/%s/", publish.ID),
	}, nil
}

func (a *InstagramAdapter) call(ctx context.Context, method, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp transfer.InstagramErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		return &Error{
			Platform:   models.PlatformInstagram,
			Code:       strconv.Itoa(errResp.Error.Code),
			HTTPStatus: resp.StatusCode,
			Message:    errResp.Error.Message,
			Body:       string(raw),
		}
	}

	return json.Unmarshal(raw, out)
}

func (a *InstagramAdapter) ClassifyError(err error) ErrorClass {
	var platformErr *Error
	if errors.As(err, &platformErr) && platformErr.Code != "" {
		if code, convErr := strconv.Atoi(platformErr.Code); convErr == nil {
			if class, ok := instagramErrorClass[code]; ok {
				return class
			}
		}
	}
	return classifyCommon(err)
}
