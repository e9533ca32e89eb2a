package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/stick95/fanpost/internal/models"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, sp *models.ScheduledPost) error
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.ScheduledPost, error)
	// ListDue returns scheduled rows whose scheduled_time has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	// Cancel flips scheduled -> cancelled. Reports whether the row moved.
	Cancel(ctx context.Context, id string, ownerID int64) (bool, error)
	// MarkProcessing flips scheduled -> processing. Two concurrent sweeps race
	// on this compare-and-swap; only the winner materializes.
	MarkProcessing(ctx context.Context, id string) (bool, error)
	MarkPosted(ctx context.Context, id, requestID string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

func (r *scheduledPostRepository) Create(ctx context.Context, sp *models.ScheduledPost) error {
	destinations, err := json.Marshal(sp.Destinations)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO scheduled_posts (id, owner_id, media_key, caption, destinations, scheduled_time, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query, sp.ID, sp.OwnerID, sp.MediaKey, sp.Caption,
		destinations, sp.ScheduledTime, sp.Timezone, sp.Status)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

const scheduledPostColumns = `id, owner_id, media_key, caption, destinations, scheduled_time, timezone,
	status, COALESCE(request_id, ''), COALESCE(error_message, ''), created_at, updated_at`

func scanScheduledPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var sp models.ScheduledPost
	var destinations []byte
	err := row.Scan(&sp.ID, &sp.OwnerID, &sp.MediaKey, &sp.Caption, &destinations,
		&sp.ScheduledTime, &sp.Timezone, &sp.Status, &sp.RequestID, &sp.ErrorMessage,
		&sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(destinations, &sp.Destinations); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	sp, err := scanScheduledPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sp, nil
}

func (r *scheduledPostRepository) ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE owner_id = $1 ORDER BY scheduled_time`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		sp, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, sp)
	}
	return posts, nil
}

func (r *scheduledPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts
		WHERE status = $1 AND scheduled_time <= $2 ORDER BY scheduled_time LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.ScheduleStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		sp, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, sp)
	}
	return posts, nil
}

func (r *scheduledPostRepository) Cancel(ctx context.Context, id string, ownerID int64) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query, models.ScheduleStatusCancelled, time.Now(), id, ownerID, models.ScheduleStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n == 1, nil
}

func (r *scheduledPostRepository) MarkProcessing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query, models.ScheduleStatusProcessing, time.Now(), id, models.ScheduleStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return n == 1, nil
}

func (r *scheduledPostRepository) MarkPosted(ctx context.Context, id, requestID string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, request_id = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.ScheduleStatusPosted, requestID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.ScheduleStatusFailed, errMsg, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
