package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestDispatcher_RunsTasks(t *testing.T) {
	d := New(newNoopLogger(), 16, 4)
	d.Start(context.Background())

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := d.Enqueue(Task{Kind: "test", Run: func(ctx context.Context) error {
			defer wg.Done()
			counter.Add(1)
			return nil
		}})
		require.True(t, ok)
	}
	wg.Wait()
	d.Stop()

	assert.Equal(t, int32(10), counter.Load())
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := New(newNoopLogger(), 1, 1)
	// воркеры не запущены, очередь вмещает ровно одну задачу

	ok := d.Enqueue(Task{Kind: "test", Run: func(ctx context.Context) error { return nil }})
	assert.True(t, ok)
	ok = d.Enqueue(Task{Kind: "test", Run: func(ctx context.Context) error { return nil }})
	assert.False(t, ok, "second task must be dropped when the queue is full")
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := New(newNoopLogger(), 4, 1)
	d.Start(context.Background())

	done := make(chan struct{})
	require.True(t, d.Enqueue(Task{Kind: "test", Run: func(ctx context.Context) error {
		panic("boom")
	}}))
	require.True(t, d.Enqueue(Task{Kind: "test", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
	d.Stop()
}

func TestDispatcher_FailuresDoNotPropagate(t *testing.T) {
	d := New(newNoopLogger(), 4, 2)
	d.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	d.Enqueue(Task{Kind: "persist", Run: func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("insert failed")
	}})
	d.Enqueue(Task{Kind: "broadcast", Run: func(ctx context.Context) error {
		defer wg.Done()
		return nil
	}})
	wg.Wait()
	d.Stop()
}
