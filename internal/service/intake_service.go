package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/blob"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/queue"
	"github.com/stick95/fanpost/internal/repository"
)

const (
	maxCaptionLength = 2200

	// bounded retry of the post-commit enqueue; exhaustion fails the task
	// instead of leaving it queued with no message behind it
	enqueueAttempts    = 3
	enqueueBackoffBase = 200 * time.Millisecond
)

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {},
}

type IntakeService interface {
	// Submit validates and fans a request out into one queued task per
	// destination, atomically, then enqueues the delivery messages.
	Submit(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef) (string, error)
	// Validate runs Submit's checks without writing anything. The scheduler
	// uses it so a bad request is rejected at schedule time, not at fire time.
	Validate(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef) error
}

type intakeService struct {
	db    *sql.DB
	cfg   config.Config
	pr    repository.PostRequestRepository
	dt    repository.DestinationTaskRepository
	tl    repository.TaskLogRepository
	sa    repository.SocialAccountRepository
	store blob.Store
	enq   queue.Enqueuer
}

func NewIntakeService(
	db *sql.DB,
	cfg config.Config,
	pr repository.PostRequestRepository,
	dt repository.DestinationTaskRepository,
	tl repository.TaskLogRepository,
	sa repository.SocialAccountRepository,
	store blob.Store,
	enq queue.Enqueuer) IntakeService {
	return &intakeService{
		db:    db,
		cfg:   cfg,
		pr:    pr,
		dt:    dt,
		tl:    tl,
		sa:    sa,
		store: store,
		enq:   enq,
	}
}

func (s *intakeService) Validate(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef) error {
	if caption == "" {
		return fmt.Errorf("%w: caption cannot be empty", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		return fmt.Errorf("%w: caption exceeds %d characters", ErrInvalidRequest, maxCaptionLength)
	}
	if len(destinations) == 0 {
		return fmt.Errorf("%w: no destinations selected", ErrInvalidRequest)
	}

	seen := make(map[models.DestinationRef]struct{}, len(destinations))
	for _, dest := range destinations {
		if !dest.Platform.Valid() {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidRequest, dest.Platform)
		}
		if dest.AccountID == "" {
			return fmt.Errorf("%w: empty account id for platform %s", ErrInvalidRequest, dest.Platform)
		}
		if _, dup := seen[dest]; dup {
			return fmt.Errorf("%w: duplicate destination %s/%s", ErrInvalidRequest, dest.Platform, dest.AccountID)
		}
		seen[dest] = struct{}{}

		owned, err := s.sa.CheckOwner(ctx, ownerID, dest)
		if err != nil {
			return err
		}
		if !owned {
			return fmt.Errorf("%w: %s/%s", ErrUnauthorized, dest.Platform, dest.AccountID)
		}
	}

	return s.validateMedia(ctx, mediaKey)
}

func (s *intakeService) validateMedia(ctx context.Context, mediaKey string) error {
	if mediaKey == "" {
		return fmt.Errorf("%w: media key is empty", ErrInvalidRequest)
	}

	r, _, err := s.store.Read(ctx, mediaKey)
	if err != nil {
		return fmt.Errorf("%w: media object %q is not readable", ErrInvalidRequest, mediaKey)
	}
	defer r.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: media object %q is not readable", ErrInvalidRequest, mediaKey)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == types.Unknown {
		return fmt.Errorf("%w: unsupported media type", ErrInvalidRequest)
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return fmt.Errorf("%w: media type %s is not allowed", ErrInvalidRequest, kind.Extension)
	}

	return nil
}

func (s *intakeService) Submit(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef) (string, error) {
	if err := s.Validate(ctx, ownerID, mediaKey, caption, destinations); err != nil {
		return "", err
	}

	requestID, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	request := models.PostRequest{
		ID:       requestID,
		OwnerID:  ownerID,
		MediaKey: mediaKey,
		MediaURL: s.store.PublicURL(mediaKey),
		Caption:  caption,
	}

	// request + all tasks become visible together or not at all
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.pr.Create(ctx, tx, &request); err != nil {
		return "", fmt.Errorf("error creating post request: %w", err)
	}

	for _, dest := range destinations {
		task := models.DestinationTask{
			RequestID: requestID,
			Platform:  dest.Platform,
			AccountID: dest.AccountID,
			Status:    models.TaskStatusQueued,
		}
		if err = s.dt.Create(ctx, tx, &task); err != nil {
			return "", fmt.Errorf("error creating destination task: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.enqueueAll(ctx, requestID, destinations)

	return requestID, nil
}

// enqueueAll pushes one delivery message per destination. Tasks whose
// message cannot be enqueued are failed with a system error so nothing sits
// queued with no message behind it.
func (s *intakeService) enqueueAll(ctx context.Context, requestID string, destinations []models.DestinationRef) {
	for _, dest := range destinations {
		payload := queue.DeliverPayload{
			RequestID: requestID,
			Platform:  dest.Platform,
			AccountID: dest.AccountID,
		}

		if err := s.enqueueWithRetry(ctx, payload); err != nil {
			slog.Error("failed to enqueue delivery task",
				"request_id", requestID, "platform", dest.Platform, "account_id", dest.AccountID, "error", err)

			msg := fmt.Sprintf("system error: could not enqueue delivery: %v", err)
			if err := s.dt.SetFailed(ctx, requestID, dest, msg); err != nil {
				slog.Error("failed to mark task failed after enqueue failure",
					"request_id", requestID, "platform", dest.Platform, "error", err)
			}
			s.appendLog(ctx, payload, models.LogLevelError, msg)
			continue
		}

		s.appendLog(ctx, payload, models.LogLevelInfo, "delivery task queued")
	}
}

func (s *intakeService) enqueueWithRetry(ctx context.Context, payload queue.DeliverPayload) error {
	var err error
	backoff := enqueueBackoffBase

	for i := 0; i < enqueueAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err = s.enq.EnqueueDeliver(ctx, payload, 0); err == nil {
			return nil
		}
	}
	return err
}

func (s *intakeService) appendLog(ctx context.Context, payload queue.DeliverPayload, level, message string) {
	err := s.tl.Append(ctx, &models.TaskLog{
		RequestID: payload.RequestID,
		Platform:  payload.Platform,
		AccountID: payload.AccountID,
		Level:     level,
		Message:   message,
	})
	if err != nil {
		slog.Error("failed to append task log", "request_id", payload.RequestID, "error", err)
	}
}
