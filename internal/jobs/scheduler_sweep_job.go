package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/repository"
	"github.com/stick95/fanpost/internal/service"
)

const sweepBatchSize = 100

type SchedulerSweepJob struct {
	sp     repository.ScheduledPostRepository
	intake service.IntakeService
}

func NewSchedulerSweepJob(sp repository.ScheduledPostRepository, intake service.IntakeService) *SchedulerSweepJob {
	return &SchedulerSweepJob{
		sp:     sp,
		intake: intake,
	}
}

// Sweep materializes every due scheduled post into a live request. Claiming a
// row flips it scheduled to processing first, so two overlapping sweeps never
// materialize the same post twice.
func (c *SchedulerSweepJob) Sweep() {
	ctx := context.Background()

	due, err := c.sp.ListDue(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, sp := range due {
		claimed, err := c.sp.MarkProcessing(ctx, sp.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if !claimed {
			continue
		}

		c.materialize(ctx, sp)
	}
}

func (c *SchedulerSweepJob) materialize(ctx context.Context, sp *models.ScheduledPost) {
	requestID, err := c.intake.Submit(ctx, sp.OwnerID, sp.MediaKey, sp.Caption, sp.Destinations)
	if err != nil {
		slog.Info("scheduled post failed to materialize",
			"scheduled_post_id", sp.ID,
			"error", err.Error())
		if err := c.sp.MarkFailed(ctx, sp.ID, err.Error()); err != nil {
			slog.Info(err.Error())
		}
		return
	}

	if err := c.sp.MarkPosted(ctx, sp.ID, requestID); err != nil {
		slog.Info(err.Error())
	}
}
