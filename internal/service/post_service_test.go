package service

import (
	"context"
	"testing"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedTaskRepo(attempts int) *fakeTaskRepo {
	return &fakeTaskRepo{task: &models.DestinationTask{
		RequestID:    "req-1",
		Platform:     models.PlatformTiktok,
		AccountID:    "acc-1",
		Status:       models.TaskStatusFailed,
		AttemptCount: attempts,
		ErrorMessage: "spam_risk: rejected",
	}}
}

func newPostServiceUnderTest(dt *fakeTaskRepo, enq *fakeEnqueuer) (PostService, *fakeLogRepo) {
	pr := &fakeRequestRepo{request: &models.PostRequest{ID: "req-1", OwnerID: 7, Caption: "hello"}}
	tl := &fakeLogRepo{}
	return NewPostService(pr, dt, tl, enq), tl
}

func TestResubmitRequeuesFailedTask(t *testing.T) {
	dt := failedTaskRepo(5)
	enq := &fakeEnqueuer{}
	s, tl := newPostServiceUnderTest(dt, enq)

	dest := models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
	err := s.Resubmit(context.Background(), 7, "req-1", dest)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusQueued, dt.task.Status)
	// attempt history survives a manual retry
	assert.Equal(t, 5, dt.task.AttemptCount)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, "req-1", enq.payloads[0].RequestID)

	require.Len(t, tl.logs, 1)
	assert.Equal(t, "manual retry requested", tl.logs[0].Message)
}

func TestResubmitCompletedTaskRejected(t *testing.T) {
	dt := failedTaskRepo(2)
	dt.task.Status = models.TaskStatusCompleted
	enq := &fakeEnqueuer{}
	s, _ := newPostServiceUnderTest(dt, enq)

	dest := models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
	err := s.Resubmit(context.Background(), 7, "req-1", dest)
	assert.ErrorIs(t, err, ErrNotResubmittable)
	assert.Empty(t, enq.payloads)
}

func TestResubmitInFlightTaskIsNoop(t *testing.T) {
	for _, status := range []string{models.TaskStatusQueued, models.TaskStatusProcessing} {
		dt := failedTaskRepo(1)
		dt.task.Status = status
		enq := &fakeEnqueuer{}
		s, _ := newPostServiceUnderTest(dt, enq)

		dest := models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
		err := s.Resubmit(context.Background(), 7, "req-1", dest)
		assert.NoError(t, err)
		assert.Empty(t, enq.payloads)
	}
}

func TestResubmitWrongOwner(t *testing.T) {
	dt := failedTaskRepo(1)
	s, _ := newPostServiceUnderTest(dt, &fakeEnqueuer{})

	dest := models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
	err := s.Resubmit(context.Background(), 99, "req-1", dest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResubmitUnknownDestination(t *testing.T) {
	dt := failedTaskRepo(1)
	s, _ := newPostServiceUnderTest(dt, &fakeEnqueuer{})

	dest := models.DestinationRef{Platform: models.PlatformYoutube, AccountID: "other"}
	err := s.Resubmit(context.Background(), 7, "req-1", dest)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResubmitEnqueueFailureRollsBack(t *testing.T) {
	dt := failedTaskRepo(3)
	enq := &fakeEnqueuer{err: assert.AnError}
	s, _ := newPostServiceUnderTest(dt, enq)

	dest := models.DestinationRef{Platform: models.PlatformTiktok, AccountID: "acc-1"}
	err := s.Resubmit(context.Background(), 7, "req-1", dest)
	require.Error(t, err)

	assert.Equal(t, models.TaskStatusFailed, dt.task.Status)
	assert.Equal(t, "spam_risk: rejected", dt.task.ErrorMessage)
}

func TestGetStatusProjectsAggregate(t *testing.T) {
	dt := failedTaskRepo(2)
	s, _ := newPostServiceUnderTest(dt, &fakeEnqueuer{})

	status, err := s.GetStatus(context.Background(), 7, "req-1")
	require.NoError(t, err)

	assert.Equal(t, "req-1", status.RequestID)
	assert.Equal(t, models.RequestStatusFailed, status.OverallStatus)
	require.Len(t, status.Destinations, 1)
	assert.Equal(t, models.TaskStatusFailed, status.Destinations[0].Status)
	assert.Equal(t, 2, status.Destinations[0].AttemptCount)
}

func TestGetStatusUnknownRequest(t *testing.T) {
	s, _ := newPostServiceUnderTest(failedTaskRepo(1), &fakeEnqueuer{})

	_, err := s.GetStatus(context.Background(), 7, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
