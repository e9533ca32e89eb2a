package service

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/repository"
)

type ScheduleService interface {
	Schedule(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef, at time.Time, timezone string) (string, error)
	List(ctx context.Context, ownerID int64) ([]*models.ScheduledPost, error)
	// Cancel succeeds only while the post has not been materialized.
	Cancel(ctx context.Context, ownerID int64, scheduledPostID string) error
}

type scheduleService struct {
	cfg    config.Config
	sp     repository.ScheduledPostRepository
	dt     repository.DestinationTaskRepository
	intake IntakeService
}

func NewScheduleService(
	cfg config.Config,
	sp repository.ScheduledPostRepository,
	dt repository.DestinationTaskRepository,
	intake IntakeService) ScheduleService {
	return &scheduleService{
		cfg:    cfg,
		sp:     sp,
		dt:     dt,
		intake: intake,
	}
}

func (s *scheduleService) Schedule(ctx context.Context, ownerID int64, mediaKey, caption string, destinations []models.DestinationRef, at time.Time, timezone string) (string, error) {
	if at.IsZero() {
		return "", fmt.Errorf("%w: scheduled time is required", ErrInvalidSchedule)
	}
	if lead := time.Until(at); lead < s.cfg.Scheduling.MinLeadTime {
		return "", fmt.Errorf("%w: scheduled time must be at least %s out", ErrInvalidSchedule, s.cfg.Scheduling.MinLeadTime)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return "", fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, timezone)
		}
	}

	if err := s.intake.Validate(ctx, ownerID, mediaKey, caption, destinations); err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	scheduled := models.ScheduledPost{
		ID:            id,
		OwnerID:       ownerID,
		MediaKey:      mediaKey,
		Caption:       caption,
		Destinations:  destinations,
		ScheduledTime: at.UTC(),
		Timezone:      timezone,
		Status:        models.ScheduleStatusScheduled,
	}
	if err := s.sp.Create(ctx, &scheduled); err != nil {
		return "", err
	}

	return id, nil
}

// List mirrors the aggregate delivery outcome onto materialized rows so the
// caller sees one coherent status without joining the request themselves.
func (s *scheduleService) List(ctx context.Context, ownerID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.sp.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	for _, sp := range posts {
		if sp.Status != models.ScheduleStatusPosted || sp.RequestID == "" {
			continue
		}

		tasks, err := s.dt.ListByRequestID(ctx, sp.RequestID)
		if err != nil {
			return nil, err
		}
		statuses := make([]string, 0, len(tasks))
		for _, t := range tasks {
			statuses = append(statuses, t.Status)
		}

		switch models.AggregateStatus(statuses) {
		case models.RequestStatusFailed:
			sp.Status = models.ScheduleStatusFailed
		case models.RequestStatusCompleted:
			sp.Status = models.ScheduleStatusPosted
		default:
			sp.Status = models.ScheduleStatusProcessing
		}
	}

	return posts, nil
}

func (s *scheduleService) Cancel(ctx context.Context, ownerID int64, scheduledPostID string) error {
	cancelled, err := s.sp.Cancel(ctx, scheduledPostID, ownerID)
	if err != nil {
		return err
	}
	if cancelled {
		return nil
	}

	existing, err := s.sp.GetByID(ctx, scheduledPostID)
	if err != nil {
		return err
	}
	if existing == nil || existing.OwnerID != ownerID {
		return ErrNotFound
	}
	if existing.Status == models.ScheduleStatusCancelled {
		// cancelling twice is fine
		return nil
	}
	return ErrAlreadyMaterialized
}
