package token

import (
	"context"
	"database/sql"
	"testing"
	"time"

	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type fakeAccountRepo struct {
	account  *models.SocialAccount
	statuses []string
}

func (f *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	return 0, nil
}

func (f *fakeAccountRepo) GetByDestination(ctx context.Context, dest models.DestinationRef) (*models.SocialAccount, error) {
	if f.account == nil || f.account.Platform != dest.Platform || f.account.AccountID != dest.AccountID {
		return nil, nil
	}
	return f.account, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CheckOwner(ctx context.Context, userID int64, dest models.DestinationRef) (bool, error) {
	return false, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, dest models.DestinationRef, accessToken, refreshToken string, expiresAt time.Time) error {
	f.account.AccessToken = accessToken
	f.account.RefreshToken = refreshToken
	f.account.TokenExpiresAt = expiresAt
	return nil
}

func (f *fakeAccountRepo) SetStatus(ctx context.Context, dest models.DestinationRef, status string) error {
	f.statuses = append(f.statuses, status)
	f.account.AccountStatus = status
	return nil
}

func (f *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

func encrypted(t *testing.T, plaintext string) string {
	t.Helper()
	out, err := sealToken(testSecretKey, plaintext)
	require.NoError(t, err)
	return out
}

func tiktokDest() models.DestinationRef {
	return models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
}

func TestGetCredentialReturnsValidToken(t *testing.T) {
	repo := &fakeAccountRepo{account: &models.SocialAccount{
		Platform:       models.PlatformTiktok,
		AccountID:      "acc-1",
		AccessToken:    encrypted(t, "live-token"),
		AccountStatus:  models.AccountStatusActive,
		TokenExpiresAt: time.Now().Add(time.Hour),
	}}
	p := NewStoreProvider(config.Config{SecretKey: testSecretKey}, repo)

	cred, err := p.GetCredential(context.Background(), tiktokDest())
	require.NoError(t, err)

	assert.Equal(t, "live-token", cred.AccessToken)
	assert.Equal(t, "acc-1", cred.AccountID)
}

func TestGetCredentialUnlinkedAccount(t *testing.T) {
	p := NewStoreProvider(config.Config{SecretKey: testSecretKey}, &fakeAccountRepo{})

	_, err := p.GetCredential(context.Background(), tiktokDest())
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestGetCredentialRevokedAccount(t *testing.T) {
	repo := &fakeAccountRepo{account: &models.SocialAccount{
		Platform:      models.PlatformTiktok,
		AccountID:     "acc-1",
		AccountStatus: models.AccountStatusRevoked,
	}}
	p := NewStoreProvider(config.Config{SecretKey: testSecretKey}, repo)

	_, err := p.GetCredential(context.Background(), tiktokDest())
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestGetCredentialExpiredWithoutRefreshToken(t *testing.T) {
	repo := &fakeAccountRepo{account: &models.SocialAccount{
		Platform:       models.PlatformTiktok,
		AccountID:      "acc-1",
		AccessToken:    encrypted(t, "stale-token"),
		RefreshToken:   encrypted(t, ""),
		AccountStatus:  models.AccountStatusActive,
		TokenExpiresAt: time.Now().Add(-time.Hour),
	}}
	p := NewStoreProvider(config.Config{SecretKey: testSecretKey}, repo)

	_, err := p.GetCredential(context.Background(), tiktokDest())
	assert.ErrorIs(t, err, ErrRevoked)
	assert.Contains(t, repo.statuses, models.AccountStatusRevoked)
}

func TestGetCredentialUnknownPlatformRefresh(t *testing.T) {
	repo := &fakeAccountRepo{account: &models.SocialAccount{
		Platform:       "myspace",
		AccountID:      "acc-1",
		AccessToken:    encrypted(t, "stale-token"),
		RefreshToken:   encrypted(t, "refresh"),
		AccountStatus:  models.AccountStatusActive,
		TokenExpiresAt: time.Now().Add(-time.Hour),
	}}
	p := NewStoreProvider(config.Config{SecretKey: testSecretKey}, repo)

	_, err := p.GetCredential(context.Background(), models.DestinationRef{Platform: "myspace", AccountID: "acc-1"})
	assert.Error(t, err)
}
