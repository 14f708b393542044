// Package test holds doubles shared by package tests.
package test

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"imagecaster/internal/db"
	"imagecaster/internal/models"
)

// MockTaskEnqueuer records enqueued tasks. Err, when set, is returned
// instead.
type MockTaskEnqueuer struct {
	EnqueuedTasks []*asynq.Task
	Err           error
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// NewMockDB swaps db.DB for a sqlmock connection for the rest of the test.
func NewMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	sqlxDB := sqlx.NewDb(mockDb, "sqlmock")

	originalDB := db.DB
	db.DB = sqlxDB
	t.Cleanup(func() {
		db.DB = originalDB
		mockDb.Close()
	})

	return sqlxDB, mock
}

// Rebuilder counts rebuild requests.
type Rebuilder struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (r *Rebuilder) RequestRebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	return r.Err
}

// Poster records announced episodes. It honours the opt-in flag like the
// real poster.
type Poster struct {
	mu     sync.Mutex
	Posted []string
	Err    error
}

func (p *Poster) Post(ctx context.Context, e *models.Episode, websiteURL string) (bool, error) {
	if !e.SocialPostEnabled {
		return false, nil
	}
	if p.Err != nil {
		return false, p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Posted = append(p.Posted, e.ID)
	return true, nil
}
