package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func runWorker(t *testing.T, w *Worker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestWorker_Serializes(t *testing.T) {
	defer goleak.VerifyNone(t)
	w := NewWorker(8)
	stop := runWorker(t, w)
	defer stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := w.Do(context.Background(), func() { counter++ })
				if err == ErrBusy {
					time.Sleep(time.Millisecond)
					continue
				}
				assert.NoError(t, err)
				return
			}
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, w.Do(context.Background(), func() { got = counter }))
	assert.Equal(t, 50, got)
}

func TestWorker_PanicDoesNotKillWorker(t *testing.T) {
	defer goleak.VerifyNone(t)
	w := NewWorker(1)
	stop := runWorker(t, w)
	defer stop()

	require.NoError(t, w.Do(context.Background(), func() { panic("boom") }))

	ran := false
	require.NoError(t, w.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestWorker_Stopped(t *testing.T) {
	w := NewWorker(1)
	stop := runWorker(t, w)
	stop()

	assert.ErrorIs(t, w.Do(context.Background(), func() {}), ErrStopped)
}

func TestWorker_CallerContext(t *testing.T) {
	w := NewWorker(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Queued but never run: no worker goroutine.
	assert.ErrorIs(t, w.Do(ctx, func() {}), context.Canceled)
	assert.Equal(t, 1, w.Pending())
}

func TestWorker_Busy(t *testing.T) {
	w := NewWorker(0)
	w.jobs <- job{run: func() {}, done: make(chan struct{})}
	assert.ErrorIs(t, w.Do(context.Background(), func() {}), ErrBusy)
}
