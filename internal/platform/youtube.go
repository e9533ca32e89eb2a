package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeCategoryPeopleBlogs = "22"

// Reasons YouTube reports inside a 403 that are throttling rather than a
// real authorization failure.
var youtubeTransientReasons = map[string]struct{}{
	"quotaExceeded":         {},
	"userRateLimitExceeded": {},
	"rateLimitExceeded":     {},
	"uploadLimitExceeded":   {},
	"backendError":          {},
	"internalError":         {},
}

// YoutubeAdapter streams the video through the YouTube Data API. The upload
// call is resumable under the hood; the client library owns the chunking.
type YoutubeAdapter struct {
	tokens token.Provider
}

func NewYoutubeAdapter(tokens token.Provider) *YoutubeAdapter {
	return &YoutubeAdapter{tokens: tokens}
}

func (a *YoutubeAdapter) Platform() models.Platform {
	return models.PlatformYoutube
}

func (a *YoutubeAdapter) Authenticate(ctx context.Context, accountID string) (*token.Credential, error) {
	return a.tokens.GetCredential(ctx, models.DestinationRef{Platform: models.PlatformYoutube, AccountID: accountID})
}

// UploadMedia uploads the video as private; Publish flips it public with the
// caption so that a failed publish never leaves a half-captioned public video.
func (a *YoutubeAdapter) UploadMedia(ctx context.Context, cred *token.Credential, media *MediaSource) (MediaHandle, error) {
	service, err := a.service(ctx, cred)
	if err != nil {
		return "", err
	}

	r, _, err := media.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer r.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:      media.Key,
			CategoryId: youtubeCategoryPeopleBlogs,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "private",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(r).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return MediaHandle(response.Id), nil
}

func (a *YoutubeAdapter) Publish(ctx context.Context, cred *token.Credential, handle MediaHandle, caption string) (*PublishResult, error) {
	service, err := a.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	video := &youtube.Video{
		Id: string(handle),
		Snippet: &youtube.VideoSnippet{
			Title:       caption,
			Description: caption,
			CategoryId:  youtubeCategoryPeopleBlogs,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	response, err := service.Videos.Update([]string{"snippet", "status"}, video).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		PostRef:   response.Id,
		Permalink: fmt.Sprintf("https://youtu.be/%s", response.Id),
	}, nil
}

func (a *YoutubeAdapter) service(ctx context.Context, cred *token.Credential) (*youtube.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken}))
	return youtube.NewService(ctx, option.WithHTTPClient(client))
}

func (a *YoutubeAdapter) ClassifyError(err error) ErrorClass {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			if _, ok := youtubeTransientReasons[item.Reason]; ok {
				return ClassTransient
			}
		}
		return classifyHTTPStatus(apiErr.Code)
	}
	return classifyCommon(err)
}
