package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/stick95/fanpost/internal/models"
)

type DestinationTaskRepository interface {
	Create(ctx context.Context, tx *sql.Tx, t *models.DestinationTask) error
	Get(ctx context.Context, requestID string, dest models.DestinationRef) (*models.DestinationTask, error)
	ListByRequestID(ctx context.Context, requestID string) ([]*models.DestinationTask, error)
	// MarkProcessing flips the task to processing, increments attempt_count
	// and returns the new count.
	MarkProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (int, error)
	// RequeueFromProcessing moves a processing task back to queued ahead of a
	// delayed retry. Reports whether the row was updated.
	RequeueFromProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error)
	// RequeueFromFailed is the manual resubmit transition. It never touches
	// attempt_count. Reports whether the row was updated (false when the task
	// was not failed, which makes concurrent resubmits idempotent).
	RequeueFromFailed(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error)
	SetCompleted(ctx context.Context, requestID string, dest models.DestinationRef, postRef, permalink string) error
	SetFailed(ctx context.Context, requestID string, dest models.DestinationRef, errMsg string) error
}

type destinationTaskRepository struct {
	db *sql.DB
}

func NewDestinationTaskRepository(db *sql.DB) DestinationTaskRepository {
	return &destinationTaskRepository{db: db}
}

func (r *destinationTaskRepository) Create(ctx context.Context, tx *sql.Tx, t *models.DestinationTask) error {
	query := `
		INSERT INTO destination_tasks (request_id, platform, account_id, status, attempt_count)
		VALUES ($1, $2, $3, $4, $5)
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, t.RequestID, t.Platform, t.AccountID, t.Status, t.AttemptCount)
	} else {
		_, err = r.db.ExecContext(ctx, query, t.RequestID, t.Platform, t.AccountID, t.Status, t.AttemptCount)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

const taskColumns = `request_id, platform, account_id, status, attempt_count,
	COALESCE(error_message, ''), COALESCE(post_ref, ''), COALESCE(permalink, ''), created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.DestinationTask, error) {
	var t models.DestinationTask
	err := row.Scan(&t.RequestID, &t.Platform, &t.AccountID, &t.Status, &t.AttemptCount,
		&t.ErrorMessage, &t.PostRef, &t.Permalink, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *destinationTaskRepository) Get(ctx context.Context, requestID string, dest models.DestinationRef) (*models.DestinationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM destination_tasks WHERE request_id = $1 AND platform = $2 AND account_id = $3`
	row := r.db.QueryRowContext(ctx, query, requestID, dest.Platform, dest.AccountID)

	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return t, nil
}

func (r *destinationTaskRepository) ListByRequestID(ctx context.Context, requestID string) ([]*models.DestinationTask, error) {
	query := `SELECT ` + taskColumns + ` FROM destination_tasks WHERE request_id = $1 ORDER BY platform, account_id`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.DestinationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *destinationTaskRepository) MarkProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (int, error) {
	query := `
		UPDATE destination_tasks
		SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
		WHERE request_id = $3 AND platform = $4 AND account_id = $5
		RETURNING attempt_count
	`

	var attempts int
	err := r.db.QueryRowContext(ctx, query, models.TaskStatusProcessing, time.Now(), requestID, dest.Platform, dest.AccountID).Scan(&attempts)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return attempts, nil
}

func (r *destinationTaskRepository) RequeueFromProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error) {
	return r.transition(ctx, requestID, dest, models.TaskStatusProcessing, models.TaskStatusQueued)
}

func (r *destinationTaskRepository) RequeueFromFailed(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error) {
	return r.transition(ctx, requestID, dest, models.TaskStatusFailed, models.TaskStatusQueued)
}

func (r *destinationTaskRepository) transition(ctx context.Context, requestID string, dest models.DestinationRef, from, to string) (bool, error) {
	query := `
		UPDATE destination_tasks
		SET status = $1, updated_at = $2
		WHERE request_id = $3 AND platform = $4 AND account_id = $5 AND status = $6
	`

	res, err := r.db.ExecContext(ctx, query, to, time.Now(), requestID, dest.Platform, dest.AccountID, from)
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

func (r *destinationTaskRepository) SetCompleted(ctx context.Context, requestID string, dest models.DestinationRef, postRef, permalink string) error {
	query := `
		UPDATE destination_tasks
		SET status = $1, post_ref = $2, permalink = $3, error_message = NULL, updated_at = $4
		WHERE request_id = $5 AND platform = $6 AND account_id = $7
	`

	_, err := r.db.ExecContext(ctx, query, models.TaskStatusCompleted, postRef, permalink, time.Now(), requestID, dest.Platform, dest.AccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *destinationTaskRepository) SetFailed(ctx context.Context, requestID string, dest models.DestinationRef, errMsg string) error {
	query := `
		UPDATE destination_tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE request_id = $4 AND platform = $5 AND account_id = $6
	`

	_, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, errMsg, time.Now(), requestID, dest.Platform, dest.AccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
