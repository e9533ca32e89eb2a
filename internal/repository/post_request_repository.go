package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/stick95/fanpost/internal/models"
)

type PostRequestRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pr *models.PostRequest) error
	GetByID(ctx context.Context, id string) (*models.PostRequest, error)
	ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.PostRequest, error)
	CheckByOwnerID(ctx context.Context, requestID string, ownerID int64) (bool, error)
}

type postRequestRepository struct {
	db *sql.DB
}

func NewPostRequestRepository(db *sql.DB) PostRequestRepository {
	return &postRequestRepository{db: db}
}

func (r *postRequestRepository) Create(ctx context.Context, tx *sql.Tx, pr *models.PostRequest) error {
	query := `
		INSERT INTO post_requests (id, owner_id, media_key, media_url, caption)
		VALUES ($1, $2, $3, $4, $5)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, pr.ID, pr.OwnerID, pr.MediaKey, pr.MediaURL, pr.Caption)
	} else {
		_, err = r.db.ExecContext(ctx, query, pr.ID, pr.OwnerID, pr.MediaKey, pr.MediaURL, pr.Caption)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postRequestRepository) GetByID(ctx context.Context, id string) (*models.PostRequest, error) {
	query := `SELECT id, owner_id, media_key, media_url, caption, created_at, updated_at FROM post_requests WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var pr models.PostRequest
	err := row.Scan(&pr.ID, &pr.OwnerID, &pr.MediaKey, &pr.MediaURL, &pr.Caption, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &pr, nil
}

func (r *postRequestRepository) ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.PostRequest, error) {
	query := `SELECT id, owner_id, media_key, media_url, caption, created_at, updated_at FROM post_requests WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var requests []*models.PostRequest
	for rows.Next() {
		var pr models.PostRequest
		err := rows.Scan(&pr.ID, &pr.OwnerID, &pr.MediaKey, &pr.MediaURL, &pr.Caption, &pr.CreatedAt, &pr.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		requests = append(requests, &pr)
	}
	return requests, nil
}

func (r *postRequestRepository) CheckByOwnerID(ctx context.Context, requestID string, ownerID int64) (bool, error) {
	query := `SELECT 1 FROM post_requests WHERE id = $1 AND owner_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, requestID, ownerID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}
