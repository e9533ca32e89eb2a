package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/platform"
)

// HandleDeliverTask is the asynq handler for one delivery message.
//
// Error contract: returning a plain error lets asynq redeliver the message
// (infrastructure-level retry, used only when the status store is
// unreachable); domain-level retries re-enqueue a fresh delayed message and
// return nil; terminal failures return asynq.SkipRetry so the message lands
// in the dead-letter archive.
func (w *Worker) HandleDeliverTask(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("undecodable delivery payload", "error", err)
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	return w.Deliver(ctx, payload)
}

// Deliver runs the task state machine: queued -> processing -> completed,
// back to queued with a delay, or failed.
func (w *Worker) Deliver(ctx context.Context, payload DeliverPayload) error {
	dest := payload.Destination()

	t, err := w.dt.Get(ctx, payload.RequestID, dest)
	if err != nil {
		return err
	}
	if t == nil {
		slog.Warn("delivery message for unknown task",
			"request_id", payload.RequestID, "platform", dest.Platform, "account_id", dest.AccountID)
		return fmt.Errorf("unknown task: %w", asynq.SkipRetry)
	}
	if t.Terminal() {
		// redelivered message for an already-settled task
		return nil
	}

	attempt, err := w.dt.MarkProcessing(ctx, payload.RequestID, dest)
	if err != nil {
		return err
	}

	w.appendLog(ctx, payload, models.LogLevelInfo, "delivery attempt started", map[string]any{
		"attempt": attempt,
	})

	adapter, err := w.registry.Resolve(dest.Platform)
	if err != nil {
		return w.failTask(ctx, payload, err.Error(), nil)
	}

	result, err := w.deliverOnce(ctx, adapter, payload)
	if err != nil {
		return w.handleFailure(ctx, adapter, payload, attempt, err)
	}

	if err := w.dt.SetCompleted(ctx, payload.RequestID, dest, result.PostRef, result.Permalink); err != nil {
		return err
	}
	w.appendLog(ctx, payload, models.LogLevelInfo, "published", map[string]any{
		"post_ref":  result.PostRef,
		"permalink": result.Permalink,
	})

	return nil
}

func (w *Worker) deliverOnce(ctx context.Context, adapter platform.Adapter, payload DeliverPayload) (*platform.PublishResult, error) {
	cred, err := adapter.Authenticate(ctx, payload.AccountID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	req, err := w.pr.GetByID(ctx, payload.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s not found", payload.RequestID)
	}

	media := &platform.MediaSource{
		Key: req.MediaKey,
		URL: req.MediaURL,
		Open: func(ctx context.Context) (io.ReadCloser, int64, error) {
			return w.store.Read(ctx, req.MediaKey)
		},
	}

	handle, err := adapter.UploadMedia(ctx, cred, media)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	result, err := adapter.Publish(ctx, cred, handle, req.Caption)
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	return result, nil
}

func (w *Worker) handleFailure(ctx context.Context, adapter platform.Adapter, payload DeliverPayload, attempt int, deliverErr error) error {
	class := adapter.ClassifyError(deliverErr)

	if class == platform.ClassTransient && attempt < w.delivery.MaxAttempts {
		w.appendLog(ctx, payload, models.LogLevelWarning, deliverErr.Error(), map[string]any{
			"attempt":        attempt,
			"classification": class.String(),
		})

		requeued, err := w.dt.RequeueFromProcessing(ctx, payload.RequestID, payload.Destination())
		if err != nil {
			return err
		}
		if !requeued {
			// lost ownership; whoever moved the row owns the followup
			return nil
		}

		// ack only once the retry message exists; an enqueue failure here
		// leaves the original message unacked for redelivery
		delay := backoffDelay(w.delivery.BackoffBase, w.delivery.BackoffCap, attempt)
		if err := w.enq.EnqueueDeliver(ctx, payload, delay); err != nil {
			return fmt.Errorf("requeue delivery: %w", err)
		}
		return nil
	}

	fields := map[string]any{
		"attempt":        attempt,
		"classification": class.String(),
	}
	var platformErr *platform.Error
	if errors.As(deliverErr, &platformErr) {
		fields["platform_code"] = platformErr.Code
		fields["http_status"] = platformErr.HTTPStatus
		fields["response_body"] = platformErr.Body
	}

	return w.failTask(ctx, payload, deliverErr.Error(), fields)
}

// failTask settles the task as failed and routes the message to the
// dead-letter archive.
func (w *Worker) failTask(ctx context.Context, payload DeliverPayload, msg string, fields map[string]any) error {
	if err := w.dt.SetFailed(ctx, payload.RequestID, payload.Destination(), msg); err != nil {
		return err
	}
	w.appendLog(ctx, payload, models.LogLevelError, msg, fields)
	return fmt.Errorf("%s: %w", msg, asynq.SkipRetry)
}

func (w *Worker) appendLog(ctx context.Context, payload DeliverPayload, level, message string, fields map[string]any) {
	err := w.tl.Append(ctx, &models.TaskLog{
		RequestID: payload.RequestID,
		Platform:  payload.Platform,
		AccountID: payload.AccountID,
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
	if err != nil {
		slog.Error("failed to append task log",
			"request_id", payload.RequestID, "platform", payload.Platform, "error", err)
	}
}

// backoffDelay is base * 2^attempt, capped. attempt is the count after the
// increment, so the first retry waits 2*base.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	return delay
}
