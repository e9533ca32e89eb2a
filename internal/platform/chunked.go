package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// chunkedUpload sends a media stream to an upload URL in fixed-size pieces,
// strictly in order. Platforms reject out-of-order or gapped chunks, so a
// chunk is only sent after the previous one was accepted.
type chunkedUpload struct {
	client    *http.Client
	uploadURL string
	chunkSize int64
	totalSize int64
}

func chunkCount(totalSize, chunkSize int64) int64 {
	n := totalSize / chunkSize
	if n == 0 || totalSize%chunkSize != 0 {
		n++
	}
	return n
}

func (u *chunkedUpload) run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, u.chunkSize)
	var offset int64
	var index int64

	for offset < u.totalSize {
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// final short chunk
			err = nil
		}
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", index, err)
		}
		if n == 0 {
			return fmt.Errorf("media stream ended at byte %d of %d", offset, u.totalSize)
		}

		if err := u.putChunk(ctx, buf[:n], offset); err != nil {
			return fmt.Errorf("upload chunk %d: %w", index, err)
		}

		offset += int64(n)
		index++
	}

	return nil
}

func (u *chunkedUpload) putChunk(ctx context.Context, chunk []byte, offset int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(chunk))
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, u.totalSize))

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			HTTPStatus: resp.StatusCode,
			Message:    "chunk upload rejected",
			Body:       string(body),
		}
	}

	return nil
}

// pollUntil calls check on an exponentially widening interval until it
// reports done, fails, or the budget runs out. Running out of budget returns
// ErrPollTimeout; processing may just be slow, so callers treat it as
// transient.
func pollUntil(ctx context.Context, initial, maxInterval, budget time.Duration, check func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(budget)
	interval := initial

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if time.Now().Add(interval).After(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}
