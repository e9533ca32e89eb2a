package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/stick95/fanpost/internal/models"
)

// TaskLogRepository is the append-only audit trail behind the /logs surface.
// Rows are never updated or deleted.
type TaskLogRepository interface {
	Append(ctx context.Context, l *models.TaskLog) error
	ListByRequestID(ctx context.Context, requestID string) ([]*models.TaskLog, error)
	ListByDestination(ctx context.Context, requestID string, dest models.DestinationRef) ([]*models.TaskLog, error)
}

type taskLogRepository struct {
	db *sql.DB
}

func NewTaskLogRepository(db *sql.DB) TaskLogRepository {
	return &taskLogRepository{db: db}
}

func (r *taskLogRepository) Append(ctx context.Context, l *models.TaskLog) error {
	fields, err := json.Marshal(l.Fields)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO task_logs (request_id, platform, account_id, level, message, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query, l.RequestID, l.Platform, l.AccountID, l.Level, l.Message, fields).Scan(&l.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *taskLogRepository) ListByRequestID(ctx context.Context, requestID string) ([]*models.TaskLog, error) {
	query := `
		SELECT id, request_id, platform, account_id, level, message, fields, created_at
		FROM task_logs WHERE request_id = $1 ORDER BY id
	`
	return r.list(ctx, query, requestID)
}

func (r *taskLogRepository) ListByDestination(ctx context.Context, requestID string, dest models.DestinationRef) ([]*models.TaskLog, error) {
	query := `
		SELECT id, request_id, platform, account_id, level, message, fields, created_at
		FROM task_logs WHERE request_id = $1 AND platform = $2 AND account_id = $3 ORDER BY id
	`
	return r.list(ctx, query, requestID, dest.Platform, dest.AccountID)
}

func (r *taskLogRepository) list(ctx context.Context, query string, args ...any) ([]*models.TaskLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var logs []*models.TaskLog
	for rows.Next() {
		var l models.TaskLog
		var fields []byte
		err := rows.Scan(&l.ID, &l.RequestID, &l.Platform, &l.AccountID, &l.Level, &l.Message, &fields, &l.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &l.Fields); err != nil {
				slog.Info(err.Error())
				return nil, err
			}
		}
		logs = append(logs, &l)
	}
	return logs, nil
}
