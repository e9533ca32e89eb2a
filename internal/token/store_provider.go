package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/repository"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	tiktokTokenURL      = "https://open.tiktokapis.com/v2/oauth/token/"
	instagramRefreshURL = "https://graph.instagram.com/refresh_access_token"

	// refresh ahead of expiry so an in-flight delivery never races the clock
	expirySkew = time.Minute
)

// StoreProvider backs credentials with the social_accounts table. Tokens are
// stored AES-GCM encrypted; expired ones are refreshed through the platform's
// token endpoint and written back.
type StoreProvider struct {
	cfg      config.Config
	accounts repository.SocialAccountRepository
	client   *http.Client
}

func NewStoreProvider(cfg config.Config, accounts repository.SocialAccountRepository) *StoreProvider {
	return &StoreProvider{
		cfg:      cfg,
		accounts: accounts,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *StoreProvider) GetCredential(ctx context.Context, dest models.DestinationRef) (*Credential, error) {
	acc, err := p.accounts.GetByDestination(ctx, dest)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNotLinked
	}
	if acc.AccountStatus == models.AccountStatusRevoked {
		return nil, ErrRevoked
	}

	if time.Until(acc.TokenExpiresAt) > expirySkew {
		accessToken, err := openToken(p.cfg.SecretKey, acc.AccessToken)
		if err != nil {
			return nil, err
		}
		return &Credential{AccountID: dest.AccountID, AccessToken: accessToken, ExpiresAt: acc.TokenExpiresAt}, nil
	}

	return p.refresh(ctx, dest, acc)
}

// RefreshAccount forces a refresh regardless of how close the token is to
// expiry. The cron sweep uses it to renew tokens before deliveries need them.
func (p *StoreProvider) RefreshAccount(ctx context.Context, acc *models.SocialAccount) error {
	dest := models.DestinationRef{Platform: acc.Platform, AccountID: acc.AccountID}
	_, err := p.refresh(ctx, dest, acc)
	return err
}

func (p *StoreProvider) refresh(ctx context.Context, dest models.DestinationRef, acc *models.SocialAccount) (*Credential, error) {
	refreshToken, err := openToken(p.cfg.SecretKey, acc.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, p.markRevoked(ctx, dest)
	}

	var accessToken, newRefreshToken string
	var expiresAt time.Time

	switch dest.Platform {
	case models.PlatformYoutube:
		accessToken, newRefreshToken, expiresAt, err = p.refreshGoogle(ctx, refreshToken)
	case models.PlatformTiktok:
		accessToken, newRefreshToken, expiresAt, err = p.refreshTiktok(ctx, refreshToken)
	case models.PlatformInstagram:
		accessToken, newRefreshToken, expiresAt, err = p.refreshInstagram(ctx, refreshToken)
	default:
		return nil, fmt.Errorf("no refresh flow for platform %s", dest.Platform)
	}

	if err != nil {
		if errors.Is(err, errRefreshDenied) {
			return nil, p.markRevoked(ctx, dest)
		}
		slog.Info(err.Error())
		return nil, err
	}

	if err := p.storeToken(ctx, dest, accessToken, newRefreshToken, expiresAt); err != nil {
		return nil, err
	}

	return &Credential{AccountID: dest.AccountID, AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// errRefreshDenied marks a refresh rejected by the platform (revoked consent,
// invalid grant) as opposed to a transport failure.
var errRefreshDenied = errors.New("refresh denied by platform")

func (p *StoreProvider) markRevoked(ctx context.Context, dest models.DestinationRef) error {
	if err := p.accounts.SetStatus(ctx, dest, models.AccountStatusRevoked); err != nil {
		slog.Info(err.Error())
	}
	return ErrRevoked
}

func (p *StoreProvider) storeToken(ctx context.Context, dest models.DestinationRef, accessToken, refreshToken string, expiresAt time.Time) error {
	sealedAccess, err := sealToken(p.cfg.SecretKey, accessToken)
	if err != nil {
		return err
	}
	sealedRefresh, err := sealToken(p.cfg.SecretKey, refreshToken)
	if err != nil {
		return err
	}
	return p.accounts.SetToken(ctx, dest, sealedAccess, sealedRefresh, expiresAt)
}

func (p *StoreProvider) refreshGoogle(ctx context.Context, refreshToken string) (string, string, time.Time, error) {
	conf := &oauth2.Config{
		ClientID:     p.cfg.GoogleClientID,
		ClientSecret: p.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := tokenSource.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return "", "", time.Time{}, errRefreshDenied
		}
		return "", "", time.Time{}, err
	}

	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	return tok.AccessToken, newRefresh, tok.Expiry, nil
}

func (p *StoreProvider) refreshTiktok(ctx context.Context, refreshToken string) (string, string, time.Time, error) {
	data := url.Values{}
	data.Set("client_key", p.cfg.TiktokClientKey)
	data.Set("client_secret", p.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", "", time.Time{}, errRefreshDenied
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", time.Time{}, fmt.Errorf("tiktok token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", "", time.Time{}, err
	}

	expiresAt := time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
	return tokenResponse.AccessToken, tokenResponse.RefreshToken, expiresAt, nil
}

func (p *StoreProvider) refreshInstagram(ctx context.Context, longLivedToken string) (string, string, time.Time, error) {
	refreshURL := fmt.Sprintf("%s?grant_type=ig_refresh_token&access_token=%s", instagramRefreshURL, url.QueryEscape(longLivedToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refreshURL, nil)
	if err != nil {
		return "", "", time.Time{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", "", time.Time{}, errRefreshDenied
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", time.Time{}, fmt.Errorf("instagram refresh endpoint returned status %d", resp.StatusCode)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", "", time.Time{}, err
	}

	expiresAt := time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
	// Instagram long-lived tokens refresh in place.
	return tokenResponse.AccessToken, tokenResponse.AccessToken, expiresAt, nil
}
