package queue

import (
	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/blob"
	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/platform"
	"github.com/stick95/fanpost/internal/repository"
)

const TaskTypeDeliverPost = "post:deliver"

// DeliverPayload carries only the task key. All mutable state lives in the
// status store, so a redelivered message is always processed against the
// current row.
type DeliverPayload struct {
	RequestID string          `json:"request_id"`
	Platform  models.Platform `json:"platform"`
	AccountID string          `json:"account_id"`
}

func (p DeliverPayload) Destination() models.DestinationRef {
	return models.DestinationRef{Platform: p.Platform, AccountID: p.AccountID}
}

// Worker drives one delivery task through authenticate, upload and publish,
// recording every transition in the status store.
type Worker struct {
	delivery config.Delivery
	pr       repository.PostRequestRepository
	dt       repository.DestinationTaskRepository
	tl       repository.TaskLogRepository
	registry *platform.Registry
	store    blob.Store
	enq      Enqueuer
}

func NewWorker(
	delivery config.Delivery,
	pr repository.PostRequestRepository,
	dt repository.DestinationTaskRepository,
	tl repository.TaskLogRepository,
	registry *platform.Registry,
	store blob.Store,
	enq Enqueuer) *Worker {
	return &Worker{
		delivery: delivery,
		pr:       pr,
		dt:       dt,
		tl:       tl,
		registry: registry,
		store:    store,
		enq:      enq,
	}
}
