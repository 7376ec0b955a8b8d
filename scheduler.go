package acceptor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
)

// TestScheduler is responsible for scheduling test runs.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func(ctx context.Context) error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler runs the callback once, or immediately and then every interval.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	clock    clock.Clock
	callback func(ctx context.Context) error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ TestScheduler = (*DefaultTestScheduler)(nil)

// NewDefaultTestScheduler creates a new DefaultTestScheduler.
func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger, clk clock.Clock) *DefaultTestScheduler {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		clock:    clk,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when tests should run.
func (s *DefaultTestScheduler) RegisterCallback(callback func(ctx context.Context) error) {
	s.callback = callback
}

// Start runs the callback once. In continuous mode it then keeps running it
// every interval in the background until Stop is called or ctx is done.
// The error of the first run is returned in both modes.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}
	if !s.runOnce && s.interval <= 0 {
		return errors.New("interval must be positive in continuous mode")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Starting scheduler in run-once mode")
		return s.callback(ctx)
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := s.callback(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *DefaultTestScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Debug("Starting periodic test runner goroutine", "interval", s.interval)

	for {
		timer := s.clock.NewTimer(s.interval)
		select {
		case <-timer.C():
			if !s.running.Load() {
				s.logger.Debug("Service stopped, exiting periodic test runner")
				return
			}
			s.logger.Info("Running periodic tests")
			if err := s.callback(ctx); err != nil {
				s.logger.Error("Error running periodic tests", "err", err)
			}

		case <-s.done:
			timer.Stop()
			s.logger.Debug("Done signal received, stopping periodic test runner")
			return

		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("Context canceled, stopping periodic test runner")
			s.running.Store(false)
			return
		}
	}
}

// Stop stops the scheduler.
func (s *DefaultTestScheduler) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}
	close(s.done)
	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic goroutine has terminated.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for goroutines to terminate", "err", ctx.Err())
		return ctx.Err()
	}
}
