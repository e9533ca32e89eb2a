package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/queue"
	"github.com/stick95/fanpost/internal/repository"
	"github.com/stick95/fanpost/internal/transfer"
)

// PostService is the read and recovery surface over delivered requests:
// status projection, log retrieval and manual resubmission of failed tasks.
type PostService interface {
	GetStatus(ctx context.Context, ownerID int64, requestID string) (*transfer.PostStatus, error)
	List(ctx context.Context, ownerID int64) ([]*transfer.PostStatus, error)
	GetLogs(ctx context.Context, ownerID int64, requestID string, dest *models.DestinationRef) ([]*models.TaskLog, error)
	Resubmit(ctx context.Context, ownerID int64, requestID string, dest models.DestinationRef) error
}

type postService struct {
	pr  repository.PostRequestRepository
	dt  repository.DestinationTaskRepository
	tl  repository.TaskLogRepository
	enq queue.Enqueuer
}

func NewPostService(
	pr repository.PostRequestRepository,
	dt repository.DestinationTaskRepository,
	tl repository.TaskLogRepository,
	enq queue.Enqueuer) PostService {
	return &postService{
		pr:  pr,
		dt:  dt,
		tl:  tl,
		enq: enq,
	}
}

func (s *postService) GetStatus(ctx context.Context, ownerID int64, requestID string) (*transfer.PostStatus, error) {
	request, err := s.ownedRequest(ctx, ownerID, requestID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, request)
}

func (s *postService) List(ctx context.Context, ownerID int64) ([]*transfer.PostStatus, error) {
	requests, err := s.pr.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	statuses := make([]*transfer.PostStatus, 0, len(requests))
	for _, request := range requests {
		status, err := s.project(ctx, request)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *postService) project(ctx context.Context, request *models.PostRequest) (*transfer.PostStatus, error) {
	tasks, err := s.dt.ListByRequestID(ctx, request.ID)
	if err != nil {
		return nil, err
	}

	destinations := make([]transfer.DestinationStatus, 0, len(tasks))
	statuses := make([]string, 0, len(tasks))
	for _, t := range tasks {
		statuses = append(statuses, t.Status)
		destinations = append(destinations, transfer.DestinationStatus{
			Platform:     t.Platform,
			AccountID:    t.AccountID,
			Status:       t.Status,
			AttemptCount: t.AttemptCount,
			Error:        t.ErrorMessage,
			PostRef:      t.PostRef,
			Permalink:    t.Permalink,
			UpdatedAt:    t.UpdatedAt,
		})
	}

	return &transfer.PostStatus{
		RequestID:     request.ID,
		Caption:       request.Caption,
		MediaURL:      request.MediaURL,
		OverallStatus: models.AggregateStatus(statuses),
		Destinations:  destinations,
		CreatedAt:     request.CreatedAt,
	}, nil
}

func (s *postService) GetLogs(ctx context.Context, ownerID int64, requestID string, dest *models.DestinationRef) ([]*models.TaskLog, error) {
	if _, err := s.ownedRequest(ctx, ownerID, requestID); err != nil {
		return nil, err
	}

	if dest != nil {
		return s.tl.ListByDestination(ctx, requestID, *dest)
	}
	return s.tl.ListByRequestID(ctx, requestID)
}

// Resubmit resets a failed task to queued and re-enqueues it. The reset is a
// compare-and-swap on the failed status, so concurrent resubmits produce
// exactly one new message. attempt_count is deliberately preserved: it counts
// every execution across automatic and manual retries.
func (s *postService) Resubmit(ctx context.Context, ownerID int64, requestID string, dest models.DestinationRef) error {
	if _, err := s.ownedRequest(ctx, ownerID, requestID); err != nil {
		return err
	}

	task, err := s.dt.Get(ctx, requestID, dest)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: no task for %s/%s", ErrNotFound, dest.Platform, dest.AccountID)
	}

	switch task.Status {
	case models.TaskStatusCompleted:
		return ErrNotResubmittable
	case models.TaskStatusQueued, models.TaskStatusProcessing:
		// already on its way; resubmit is a no-op
		return nil
	}

	reset, err := s.dt.RequeueFromFailed(ctx, requestID, dest)
	if err != nil {
		return err
	}
	if !reset {
		// lost the race against another resubmit or a worker
		return nil
	}

	if err := s.tl.Append(ctx, &models.TaskLog{
		RequestID: requestID,
		Platform:  dest.Platform,
		AccountID: dest.AccountID,
		Level:     models.LogLevelInfo,
		Message:   "manual retry requested",
		Fields:    map[string]any{"attempt_count": task.AttemptCount},
	}); err != nil {
		slog.Error("failed to append resubmit log", "request_id", requestID, "error", err)
	}

	payload := queue.DeliverPayload{RequestID: requestID, Platform: dest.Platform, AccountID: dest.AccountID}
	if err := s.enq.EnqueueDeliver(ctx, payload, 0); err != nil {
		// roll the status back so the task is not queued with no message
		if failErr := s.dt.SetFailed(ctx, requestID, dest, task.ErrorMessage); failErr != nil {
			slog.Error("failed to restore task after enqueue failure", "request_id", requestID, "error", failErr)
		}
		return fmt.Errorf("enqueue resubmitted task: %w", err)
	}

	return nil
}

func (s *postService) ownedRequest(ctx context.Context, ownerID int64, requestID string) (*models.PostRequest, error) {
	request, err := s.pr.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil || request.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return request, nil
}
