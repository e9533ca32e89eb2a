package platform

import (
	"context"
	"fmt"
	"io"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/token"
)

// MediaSource points at the video object in blob storage. URL serves
// platforms that pull media themselves; Open streams bytes for platforms
// that take an upload, returning the reader and the total size.
type MediaSource struct {
	Key  string
	URL  string
	Open func(ctx context.Context) (io.ReadCloser, int64, error)
}

// MediaHandle is the platform's opaque reference to uploaded-but-unpublished
// media (a publish id, container id or video id).
type MediaHandle string

type PublishResult struct {
	PostRef   string `json:"post_ref"`
	Permalink string `json:"permalink"`
}

// Adapter encapsulates one platform family's upload + publish protocol.
// Implementations are stateless; all per-task state lives in the status
// store and all credentials come from the token provider per call.
type Adapter interface {
	Platform() models.Platform
	Authenticate(ctx context.Context, accountID string) (*token.Credential, error)
	UploadMedia(ctx context.Context, cred *token.Credential, media *MediaSource) (MediaHandle, error)
	Publish(ctx context.Context, cred *token.Credential, handle MediaHandle, caption string) (*PublishResult, error)
	// ClassifyError maps any error produced by the methods above onto the
	// transient/permanent taxonomy. The delivery worker never inspects
	// platform error shapes itself.
	ClassifyError(err error) ErrorClass
}

type Registry struct {
	adapters map[models.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[models.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Resolve(p models.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}
