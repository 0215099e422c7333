package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appfee "github.com/academy/backend/internal/application/fee"
	"go.uber.org/zap"
)

// ReminderSweeper sends the reminders that are due at now
type ReminderSweeper interface {
	DispatchDue(ctx context.Context, now time.Time) (appfee.ReminderSweepResult, error)
}

// ReminderSchedulerConfig holds configuration for the reminder scheduler
type ReminderSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval between sweeps
	Interval time.Duration

	// SweepTimeout is the maximum time for one sweep
	SweepTimeout time.Duration

	// RunOnStart runs a sweep immediately instead of waiting one interval
	RunOnStart bool
}

// DefaultReminderSchedulerConfig returns default configuration
func DefaultReminderSchedulerConfig() ReminderSchedulerConfig {
	return ReminderSchedulerConfig{
		Enabled:      true,
		Interval:     15 * time.Minute,
		SweepTimeout: 5 * time.Minute,
		RunOnStart:   true,
	}
}

// ReminderScheduler runs the reminder sweep on a fixed interval. Sweeps never
// overlap: a tick that arrives while one is running is dropped.
type ReminderScheduler struct {
	sweeper ReminderSweeper
	logger  *zap.Logger
	config  ReminderSchedulerConfig
	now     func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  atomic.Bool

	lastMu     sync.Mutex
	lastResult appfee.ReminderSweepResult
	lastRunAt  time.Time
}

// NewReminderScheduler creates a new reminder scheduler
func NewReminderScheduler(sweeper ReminderSweeper, logger *zap.Logger, config ReminderSchedulerConfig) (*ReminderScheduler, error) {
	if config.Enabled && config.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
		now:     time.Now,
	}, nil
}

// Start starts the sweep loop
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reminder scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx)

	s.logger.Info("Reminder scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop cancels the loop and waits for a running sweep to finish
func (s *ReminderScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reminder scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reminder scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ReminderScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reminder loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one DispatchDue unless another sweep holds the slot
func (s *ReminderScheduler) sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("Reminder sweep already running, tick skipped")
		return
	}
	defer s.sweeping.Store(false)

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startedAt := s.now()
	result, err := s.sweeper.DispatchDue(sweepCtx, startedAt)
	duration := time.Since(startedAt)

	s.lastMu.Lock()
	s.lastResult = result
	s.lastRunAt = startedAt
	s.lastMu.Unlock()

	if err != nil {
		s.logger.Error("Reminder sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	fields := []zap.Field{
		zap.Duration("duration", duration),
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	}
	if result.Scanned == 0 {
		s.logger.Debug("Reminder sweep completed", fields...)
		return
	}
	s.logger.Info("Reminder sweep completed", fields...)
}

// TriggerNow runs a sweep in the background outside the regular schedule
func (s *ReminderScheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	if s.sweeping.Load() {
		s.mu.Unlock()
		return ErrSweepInProgress
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
	}()
	return nil
}

// LastRun returns the result and start time of the most recent sweep
func (s *ReminderScheduler) LastRun() (appfee.ReminderSweepResult, time.Time) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastResult, s.lastRunAt
}

// IsRunning returns whether the scheduler is running
func (s *ReminderScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
