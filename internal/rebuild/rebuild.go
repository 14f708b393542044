// Package rebuild asks the static site host to rebuild after the feed changes.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jpillora/backoff"
	"imagecaster/pkg/tasks"
)

// coalesceWindow folds rebuild requests made close together into one task.
const coalesceWindow = time.Minute

// QueueTrigger enqueues a site rebuild task for the worker.
type QueueTrigger struct {
	client tasks.TaskEnqueuer
}

func NewQueueTrigger(client tasks.TaskEnqueuer) *QueueTrigger {
	return &QueueTrigger{client: client}
}

func (t *QueueTrigger) RequestRebuild(ctx context.Context) error {
	task, err := tasks.NewRebuildSiteTask()
	if err != nil {
		return fmt.Errorf("failed to create rebuild task: %w", err)
	}
	_, err = t.client.Enqueue(task, asynq.Unique(coalesceWindow), asynq.MaxRetry(3))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("failed to enqueue rebuild task: %w", err)
	}
	return nil
}

// Webhook calls a deploy hook URL.
type Webhook struct {
	URL         string
	Client      *http.Client
	MaxAttempts int
	Backoff     *backoff.Backoff
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:         url,
		Client:      &http.Client{Timeout: 15 * time.Second},
		MaxAttempts: 4,
		Backoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    30 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Fire POSTs to the hook, retrying server errors and transport failures.
func (w *Webhook) Fire(ctx context.Context) error {
	if w.URL == "" {
		return nil
	}
	w.Backoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
		lastErr = w.post(ctx)
		if lastErr == nil {
			return nil
		}
		var permanent *permanentError
		if errors.As(lastErr, &permanent) || attempt == w.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.Backoff.Duration()):
		}
	}
	return lastErr
}

type permanentError struct {
	status int
	err    error
}

func (e *permanentError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("invalid rebuild hook: %v", e.err)
	}
	return fmt.Sprintf("rebuild hook rejected request with status %d", e.status)
}

func (e *permanentError) Unwrap() error {
	return e.err
}

func (w *Webhook) post(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, nil)
	if err != nil {
		return &permanentError{err: err}
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("rebuild hook request failed: %w", err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rebuild hook returned status %d", resp.StatusCode)
	default:
		return &permanentError{status: resp.StatusCode}
	}
}
