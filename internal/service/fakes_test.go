package service

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"time"

	"github.com/stick95/fanpost/internal/models"
	"github.com/stick95/fanpost/internal/queue"
)

// txStub satisfies just enough of database/sql's driver interfaces for the
// intake transaction to open and commit; the fake repositories ignore it.
type txStubDriver struct{}
type txStubConn struct{}
type txStubTx struct{}

func (txStubDriver) Open(name string) (driver.Conn, error) { return txStubConn{}, nil }
func (txStubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("txstub: statements not supported")
}
func (txStubConn) Close() error { return nil }

func (txStubConn) Begin() (driver.Tx, error) { return txStubTx{}, nil }

func (txStubTx) Commit() error   { return nil }
func (txStubTx) Rollback() error { return nil }

func init() { sql.Register("txstub", txStubDriver{}) }

type fakeTaskRepo struct {
	task    *models.DestinationTask
	created []*models.DestinationTask
}

func (f *fakeTaskRepo) Create(ctx context.Context, tx *sql.Tx, t *models.DestinationTask) error {
	f.created = append(f.created, t)
	f.task = t
	return nil
}

func (f *fakeTaskRepo) find(requestID string, dest models.DestinationRef) *models.DestinationTask {
	for _, t := range f.created {
		if t.RequestID == requestID && t.Destination() == dest {
			return t
		}
	}
	if f.task != nil && f.task.RequestID == requestID && f.task.Destination() == dest {
		return f.task
	}
	return nil
}

func (f *fakeTaskRepo) Get(ctx context.Context, requestID string, dest models.DestinationRef) (*models.DestinationTask, error) {
	t := f.find(requestID, dest)
	if t == nil {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTaskRepo) ListByRequestID(ctx context.Context, requestID string) ([]*models.DestinationTask, error) {
	if len(f.created) > 0 {
		out := make([]*models.DestinationTask, 0, len(f.created))
		for _, t := range f.created {
			if t.RequestID == requestID {
				out = append(out, t)
			}
		}
		return out, nil
	}
	if f.task == nil {
		return nil, nil
	}
	return []*models.DestinationTask{f.task}, nil
}

func (f *fakeTaskRepo) MarkProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (int, error) {
	f.task.Status = models.TaskStatusProcessing
	f.task.AttemptCount++
	return f.task.AttemptCount, nil
}

func (f *fakeTaskRepo) RequeueFromProcessing(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error) {
	if f.task.Status != models.TaskStatusProcessing {
		return false, nil
	}
	f.task.Status = models.TaskStatusQueued
	return true, nil
}

func (f *fakeTaskRepo) RequeueFromFailed(ctx context.Context, requestID string, dest models.DestinationRef) (bool, error) {
	if f.task.Status != models.TaskStatusFailed {
		return false, nil
	}
	f.task.Status = models.TaskStatusQueued
	return true, nil
}

func (f *fakeTaskRepo) SetCompleted(ctx context.Context, requestID string, dest models.DestinationRef, postRef, permalink string) error {
	f.task.Status = models.TaskStatusCompleted
	f.task.PostRef = postRef
	f.task.Permalink = permalink
	f.task.ErrorMessage = ""
	return nil
}

func (f *fakeTaskRepo) SetFailed(ctx context.Context, requestID string, dest models.DestinationRef, errMsg string) error {
	t := f.find(requestID, dest)
	if t == nil {
		t = f.task
	}
	t.Status = models.TaskStatusFailed
	t.ErrorMessage = errMsg
	return nil
}

type fakeRequestRepo struct {
	request *models.PostRequest
}

func (f *fakeRequestRepo) Create(ctx context.Context, tx *sql.Tx, pr *models.PostRequest) error {
	f.request = pr
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id string) (*models.PostRequest, error) {
	if f.request == nil || f.request.ID != id {
		return nil, nil
	}
	return f.request, nil
}

func (f *fakeRequestRepo) ListByOwnerID(ctx context.Context, ownerID int64) ([]*models.PostRequest, error) {
	if f.request == nil {
		return nil, nil
	}
	return []*models.PostRequest{f.request}, nil
}

func (f *fakeRequestRepo) CheckByOwnerID(ctx context.Context, requestID string, ownerID int64) (bool, error) {
	return f.request != nil && f.request.ID == requestID && f.request.OwnerID == ownerID, nil
}

type fakeLogRepo struct {
	logs []*models.TaskLog
}

func (f *fakeLogRepo) Append(ctx context.Context, l *models.TaskLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeLogRepo) ListByRequestID(ctx context.Context, requestID string) ([]*models.TaskLog, error) {
	return f.logs, nil
}

func (f *fakeLogRepo) ListByDestination(ctx context.Context, requestID string, dest models.DestinationRef) ([]*models.TaskLog, error) {
	out := make([]*models.TaskLog, 0, len(f.logs))
	for _, l := range f.logs {
		if l.Platform == dest.Platform && l.AccountID == dest.AccountID {
			out = append(out, l)
		}
	}
	return out, nil
}

// fakeAccountRepo authorizes the destinations in owned and returns the
// stored accounts for list calls.
type fakeAccountRepo struct {
	owned    map[models.DestinationRef]int64
	accounts []*models.SocialAccount
}

func (f *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	f.accounts = append(f.accounts, sa)
	return int64(len(f.accounts)), nil
}

func (f *fakeAccountRepo) GetByDestination(ctx context.Context, dest models.DestinationRef) (*models.SocialAccount, error) {
	for _, a := range f.accounts {
		if a.Platform == dest.Platform && a.AccountID == dest.AccountID {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return f.accounts, nil
}

func (f *fakeAccountRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CheckOwner(ctx context.Context, userID int64, dest models.DestinationRef) (bool, error) {
	owner, ok := f.owned[dest]
	return ok && owner == userID, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, dest models.DestinationRef, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (f *fakeAccountRepo) SetStatus(ctx context.Context, dest models.DestinationRef, status string) error {
	return nil
}

func (f *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	return nil
}

// fakeBlobStore serves the same payload for every key. An empty payload
// simulates a missing object.
type fakeBlobStore struct {
	data []byte
	err  error
}

func (f *fakeBlobStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), int64(len(f.data)), nil
}

func (f *fakeBlobStore) PublicURL(key string) string { return "https://media.test/" + key }

type fakeEnqueuer struct {
	payloads []queue.DeliverPayload
	delays   []time.Duration
	err      error
}

func (f *fakeEnqueuer) EnqueueDeliver(ctx context.Context, p queue.DeliverPayload, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	f.delays = append(f.delays, delay)
	return nil
}

// mp4Header is the ISO base media file type box that the media sniffer
// recognizes as video/mp4.
func mp4Header() []byte {
	head := make([]byte, 262)
	copy(head, []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'})
	return head
}
