package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) run(_ context.Context, executionID string) {
	r.mu.Lock()
	r.ids = append(r.ids, executionID)
	r.mu.Unlock()
	r.ch <- executionID
}

func (r *recorder) wait(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch of %s", want)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func TestMemoryQueue_ImmediateDispatch(t *testing.T) {
	rec := newRecorder()
	q := NewMemory(rec.run, nil)
	defer q.Close()

	require.NoError(t, q.Enqueue(context.Background(), "exec-1"))
	rec.wait(t, "exec-1")
}

func TestMemoryQueue_DelayedDispatch(t *testing.T) {
	rec := newRecorder()
	q := NewMemory(rec.run, nil)
	defer q.Close()

	start := time.Now()
	require.NoError(t, q.EnqueueAfter(context.Background(), "exec-1", 30*time.Millisecond))
	rec.wait(t, "exec-1")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMemoryQueue_DelayedDedup(t *testing.T) {
	rec := newRecorder()
	q := NewMemory(rec.run, nil)
	defer q.Close()

	require.NoError(t, q.EnqueueAfter(context.Background(), "exec-1", 20*time.Millisecond))
	require.NoError(t, q.EnqueueAfter(context.Background(), "exec-1", 20*time.Millisecond))

	rec.wait(t, "exec-1")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestMemoryQueue_CloseDropsPendingTimers(t *testing.T) {
	rec := newRecorder()
	q := NewMemory(rec.run, nil)

	require.NoError(t, q.EnqueueAfter(context.Background(), "exec-1", time.Hour))
	require.NoError(t, q.Close())
	assert.Equal(t, 0, rec.count())
}

func TestMemoryQueue_EnqueueAfterCloseFails(t *testing.T) {
	rec := newRecorder()
	q := NewMemory(rec.run, nil)
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), "exec-1")
	assert.Error(t, err)
}

func TestMemoryQueue_CloseWaitsForInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var done bool
	var mu sync.Mutex

	q := NewMemory(func(context.Context, string) {
		close(started)
		<-release
		mu.Lock()
		done = true
		mu.Unlock()
	}, nil)

	require.NoError(t, q.Enqueue(context.Background(), "exec-1"))
	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, q.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, done)
}
