package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// queueMaxRetry bounds asynq's own redelivery of a message the handler could
// not process at all (store outage, crash mid-run). Domain-level retries are
// scheduled explicitly by the worker and do not consume these.
const queueMaxRetry = 10

type Enqueuer interface {
	EnqueueDeliver(ctx context.Context, p DeliverPayload, delay time.Duration) error
}

// AsynqEnqueuer enqueues delivery messages on the shared asynq client. The
// task timeout doubles as the processing lease: while a worker holds the
// message no other consumer sees it, so it must outlive the worst-case
// chunked upload.
type AsynqEnqueuer struct {
	client      *asynq.Client
	taskTimeout time.Duration
}

func NewAsynqEnqueuer(client *asynq.Client, taskTimeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, taskTimeout: taskTimeout}
}

func (e *AsynqEnqueuer) EnqueueDeliver(ctx context.Context, p DeliverPayload, delay time.Duration) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDeliverPost, payload)

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(queueMaxRetry),
		asynq.Timeout(e.taskTimeout),
	)
	if err != nil {
		return err
	}

	slog.Info("delivery task enqueued",
		"request_id", p.RequestID, "platform", p.Platform, "account_id", p.AccountID, "delay", delay)
	return nil
}
