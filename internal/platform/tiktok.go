package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
	"github.com/stick95/fanpost/internal/transfer"
)

const (
	tiktokBaseURL = "https://open.tiktokapis.com"

	// chunk size is fixed by the platform, not tunable per request
	tiktokChunkSize = int64(5 * 1024 * 1024)

	tiktokPollInitial = 2 * time.Second
	tiktokPollMax     = 30 * time.Second
	tiktokPollBudget  = 300 * time.Second

	tiktokStatusUploaded   = "UPLOAD_COMPLETE"
	tiktokStatusProcessing = "PROCESSING_UPLOAD"
	tiktokStatusFailed     = "FAILED"
)

// tiktokErrorClass maps TikTok error codes onto the retry taxonomy. Codes
// missing from the table fall back to HTTP status classification.
var tiktokErrorClass = map[string]ErrorClass{
	"rate_limit_exceeded":       ClassTransient,
	"spam_risk_too_many_posts":  ClassTransient,
	"internal_error":            ClassTransient,
	"access_token_invalid":      ClassPermanent,
	"scope_not_authorized":      ClassPermanent,
	"invalid_file_upload":       ClassPermanent,
	"video_format_check_failed": ClassPermanent,
	"duration_check_failed":     ClassPermanent,
	"picture_size_check_failed": ClassPermanent,
}

// TiktokAdapter publishes through TikTok's chunked FILE_UPLOAD protocol:
// init a publish session, PUT sequential chunks against the returned upload
// URL, then poll processing status until the upload completes.
type TiktokAdapter struct {
	tokens  token.Provider
	client  *http.Client
	baseURL string

	chunkSize   int64
	pollInitial time.Duration
	pollMax     time.Duration
	pollBudget  time.Duration
}

func NewTiktokAdapter(tokens token.Provider) *TiktokAdapter {
	return &TiktokAdapter{
		tokens:      tokens,
		client:      &http.Client{Timeout: 2 * time.Minute},
		baseURL:     tiktokBaseURL,
		chunkSize:   tiktokChunkSize,
		pollInitial: tiktokPollInitial,
		pollMax:     tiktokPollMax,
		pollBudget:  tiktokPollBudget,
	}
}

func (a *TiktokAdapter) Platform() models.Platform {
	return models.PlatformTiktok
}

func (a *TiktokAdapter) Authenticate(ctx context.Context, accountID string) (*token.Credential, error) {
	return a.tokens.GetCredential(ctx, models.DestinationRef{Platform: models.PlatformTiktok, AccountID: accountID})
}

func (a *TiktokAdapter) UploadMedia(ctx context.Context, cred *token.Credential, media *MediaSource) (MediaHandle, error) {
	r, size, err := media.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer r.Close()

	session, err := a.initUpload(ctx, cred, size)
	if err != nil {
		return "", err
	}

	upload := &chunkedUpload{
		client:    a.client,
		uploadURL: session.UploadURL,
		chunkSize: a.chunkSize,
		totalSize: size,
	}
	if err := upload.run(ctx, r); err != nil {
		return "", err
	}

	if err := a.waitForProcessing(ctx, cred, session.PublishID); err != nil {
		return "", err
	}

	return MediaHandle(session.PublishID), nil
}

func (a *TiktokAdapter) initUpload(ctx context.Context, cred *token.Credential, size int64) (*transfer.TiktokInitData, error) {
	initReq := transfer.TiktokInitRequest{
		SourceInfo: transfer.TiktokSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       a.chunkSize,
			TotalChunkCount: chunkCount(size, a.chunkSize),
		},
	}

	var initResp transfer.TiktokInitResponse
	if err := a.post(ctx, cred, "/v2/post/publish/video/init/", initReq, &initResp); err != nil {
		return nil, err
	}
	if initResp.Data.UploadURL == "" || initResp.Data.PublishID == "" {
		return nil, &Error{
			Platform: models.PlatformTiktok,
			Code:     initResp.Error.Code,
			Message:  "upload init returned no session",
			Body:     initResp.Error.Message,
		}
	}

	return &initResp.Data, nil
}

func (a *TiktokAdapter) waitForProcessing(ctx context.Context, cred *token.Credential, publishID string) error {
	return pollUntil(ctx, a.pollInitial, a.pollMax, a.pollBudget, func(ctx context.Context) (bool, error) {
		var statusResp transfer.TiktokStatusResponse
		err := a.post(ctx, cred, "/v2/post/publish/status/fetch/", transfer.TiktokStatusRequest{PublishID: publishID}, &statusResp)
		if err != nil {
			return false, err
		}

		switch statusResp.Data.Status {
		case tiktokStatusUploaded:
			return true, nil
		case tiktokStatusFailed:
			return false, &Error{
				Platform: models.PlatformTiktok,
				Code:     statusResp.Data.FailReason,
				Message:  "upload processing failed",
			}
		default:
			return false, nil
		}
	})
}

func (a *TiktokAdapter) Publish(ctx context.Context, cred *token.Credential, handle MediaHandle, caption string) (*PublishResult, error) {
	publishReq := transfer.TiktokPublishRequest{
		PublishID: string(handle),
		PostInfo: transfer.TiktokPostInfo{
			Title:        caption,
			PrivacyLevel: "PUBLIC_TO_EVERYONE",
		},
	}

	var publishResp transfer.TiktokPublishResponse
	if err := a.post(ctx, cred, "/v2/post/publish/", publishReq, &publishResp); err != nil {
		return nil, err
	}
	if publishResp.Data.ShareID == "" {
		return nil, &Error{
			Platform: models.PlatformTiktok,
			Code:     publishResp.Error.Code,
			Message:  "publish returned no share id",
			Body:     publishResp.Error.Message,
		}
	}

	return &PublishResult{PostRef: publishResp.Data.ShareID, Permalink: publishResp.Data.ShareURL}, nil
}

func (a *TiktokAdapter) post(ctx context.Context, cred *token.Credential, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

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
		var errResp struct {
			Error transfer.TiktokError `json:"error"`
		}
		_ = json.Unmarshal(raw, &errResp)
		return &Error{
			Platform:   models.PlatformTiktok,
			Code:       errResp.Error.Code,
			HTTPStatus: resp.StatusCode,
			Message:    errResp.Error.Message,
			Body:       string(raw),
		}
	}

	return json.Unmarshal(raw, out)
}

func (a *TiktokAdapter) ClassifyError(err error) ErrorClass {
	var platformErr *Error
	if errors.As(err, &platformErr) && platformErr.Code != "" {
		if class, ok := tiktokErrorClass[platformErr.Code]; ok {
			return class
		}
	}
	return classifyCommon(err)
}
