package server

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFixtureWatcher_DebouncesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := writeFixture(t, fixtureV1)

	var calls atomic.Int32
	fw, err := NewFixtureWatcher(path, 80*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fixtureV2), 0644))
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2), "a burst of writes collapses into few reloads")

	cancel()
	require.NoError(t, <-done)
}

func TestFixtureWatcher_IgnoresSiblings(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := writeFixture(t, fixtureV1)

	var calls atomic.Int32
	fw, err := NewFixtureWatcher(path, 10*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	require.NoError(t, os.WriteFile(path+".swp", []byte("x"), 0644))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	cancel()
	require.NoError(t, <-done)
}
