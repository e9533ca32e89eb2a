package token

import (
	"context"
	"errors"
	"time"

	"github.com/stick95/fanpost/internal/models"
)

var (
	// ErrNotLinked means no credential exists for the destination.
	ErrNotLinked = errors.New("account is not linked")
	// ErrRevoked means the credential is expired and cannot be refreshed.
	// This is a permanent condition; only re-linking the account fixes it.
	ErrRevoked = errors.New("account credential is revoked")
)

type Credential struct {
	AccountID   string
	AccessToken string
	ExpiresAt   time.Time
}

// Provider resolves a usable access token for a destination, refreshing an
// expired-but-refreshable credential transparently.
type Provider interface {
	GetCredential(ctx context.Context, dest models.DestinationRef) (*Credential, error)
}
