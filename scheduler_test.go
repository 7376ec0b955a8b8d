package acceptor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultTestScheduler_RunOnce tests the scheduler in run-once mode
func TestDefaultTestScheduler_RunOnce(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	scheduler := NewDefaultTestScheduler(time.Second, true, log.NewLogger(log.DiscardHandler()), clk)

	var calls atomic.Int32
	scheduler.RegisterCallback(func(context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	// No timer is armed in run-once mode
	clk.Increment(time.Hour)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, clk.WatcherCount())
	require.NoError(t, scheduler.Stop())
}

// TestDefaultTestScheduler_RunOnceError tests that the run-once error is returned
func TestDefaultTestScheduler_RunOnceError(t *testing.T) {
	scheduler := NewDefaultTestScheduler(0, true, log.NewLogger(log.DiscardHandler()), nil)
	boom := errors.New("boom")
	scheduler.RegisterCallback(func(context.Context) error { return boom })

	assert.ErrorIs(t, scheduler.Start(context.Background()), boom)
}

// TestDefaultTestScheduler_Periodic tests the scheduler in periodic mode
func TestDefaultTestScheduler_Periodic(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	interval := 10 * time.Minute
	scheduler := NewDefaultTestScheduler(interval, false, log.NewLogger(log.DiscardHandler()), clk)

	callCh := make(chan struct{}, 10)
	scheduler.RegisterCallback(func(context.Context) error {
		callCh <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	<-callCh // immediate run

	for i := 0; i < 3; i++ {
		clk.WaitForWatcherAndIncrement(interval)
		select {
		case <-callCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("periodic run %d did not happen", i+1)
		}
	}

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(context.Background()))
	assert.True(t, scheduler.Stopped())
}

// TestDefaultTestScheduler_PeriodicErrorsDoNotStop tests that a failing periodic run keeps the schedule
func TestDefaultTestScheduler_PeriodicErrorsDoNotStop(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	interval := time.Minute
	scheduler := NewDefaultTestScheduler(interval, false, log.NewLogger(log.DiscardHandler()), clk)

	var calls atomic.Int32
	callCh := make(chan struct{}, 10)
	scheduler.RegisterCallback(func(context.Context) error {
		callCh <- struct{}{}
		if calls.Add(1) > 1 {
			return errors.New("periodic failure")
		}
		return nil
	})

	require.NoError(t, scheduler.Start(context.Background()))
	<-callCh
	clk.WaitForWatcherAndIncrement(interval)
	<-callCh
	clk.WaitForWatcherAndIncrement(interval)
	<-callCh

	require.NoError(t, scheduler.Stop())
	require.NoError(t, scheduler.WaitForShutdown(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

// TestDefaultTestScheduler_ContextCancel tests that cancelling the context stops the loop
func TestDefaultTestScheduler_ContextCancel(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Now())
	scheduler := NewDefaultTestScheduler(time.Minute, false, log.NewLogger(log.DiscardHandler()), clk)
	scheduler.RegisterCallback(func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, scheduler.WaitForShutdown(waitCtx))
	assert.True(t, scheduler.Stopped())
	require.NoError(t, scheduler.Stop())
}

func TestDefaultTestScheduler_Validation(t *testing.T) {
	scheduler := NewDefaultTestScheduler(time.Minute, false, log.NewLogger(log.DiscardHandler()), nil)
	require.Error(t, scheduler.Start(context.Background()), "callback is required")

	scheduler = NewDefaultTestScheduler(0, false, log.NewLogger(log.DiscardHandler()), nil)
	scheduler.RegisterCallback(func(context.Context) error { return nil })
	require.Error(t, scheduler.Start(context.Background()), "continuous mode needs an interval")
}
