package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/stick95/fanpost/internal/models"
)

type SocialAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error)
	GetByDestination(ctx context.Context, dest models.DestinationRef) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	// ListExpiring returns active accounts whose token expires inside the window.
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error)
	// CheckOwner reports whether userID controls the destination.
	CheckOwner(ctx context.Context, userID int64, dest models.DestinationRef) (bool, error)
	SetToken(ctx context.Context, dest models.DestinationRef, accessToken, refreshToken string, expiresAt time.Time) error
	SetStatus(ctx context.Context, dest models.DestinationRef, status string) error
	Remove(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (user_id, platform, account_id, account_name,
			account_username, profile_picture_url, access_token, refresh_token, token_expires_at, account_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	var err error
	args := []any{sa.UserID, sa.Platform, sa.AccountID, sa.AccountName, sa.AccountUsername,
		sa.ProfilePicture, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, models.AccountStatusActive}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, account_username,
	profile_picture_url, access_token, refresh_token, token_expires_at, account_status, created_at, updated_at`

func scanSocialAccount(row interface{ Scan(...any) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccountUsername, &sa.ProfilePicture, &sa.AccessToken, &sa.RefreshToken,
		&sa.TokenExpiresAt, &sa.AccountStatus, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) GetByDestination(ctx context.Context, dest models.DestinationRef) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE platform = $1 AND account_id = $2`
	row := r.db.QueryRowContext(ctx, query, dest.Platform, dest.AccountID)

	sa, err := scanSocialAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1`
	return r.list(ctx, query, userID)
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE account_status = $1 AND token_expires_at BETWEEN $2 AND $3`
	return r.list(ctx, query, models.AccountStatusActive, from, to)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, nil
}

func (r *socialAccountRepository) CheckOwner(ctx context.Context, userID int64, dest models.DestinationRef) (bool, error) {
	query := `SELECT 1 FROM social_accounts WHERE user_id = $1 AND platform = $2 AND account_id = $3`

	var result int
	err := r.db.QueryRowContext(ctx, query, userID, dest.Platform, dest.AccountID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, dest models.DestinationRef, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1, refresh_token = $2, token_expires_at = $3, updated_at = $4
		WHERE platform = $5 AND account_id = $6
	`

	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, time.Now(), dest.Platform, dest.AccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) SetStatus(ctx context.Context, dest models.DestinationRef, status string) error {
	query := `
		UPDATE social_accounts
		SET account_status = $1, updated_at = $2
		WHERE platform = $3 AND account_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, status, time.Now(), dest.Platform, dest.AccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
