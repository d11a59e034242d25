// Package scheduler periodically refreshes the displayed weather.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
)

// Refresher is the part of the dashboard the scheduler drives.
type Refresher interface {
	RefreshDisplayed(ctx context.Context) error
}

// AutoRefresh re-runs RefreshDisplayed every interval. A zero interval disables it.
type AutoRefresh struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	runs      atomic.Int64
}

// New creates an AutoRefresh. timeout bounds each refresh (default 30s).
func New(target Refresher, interval, timeout time.Duration, logger *zap.Logger) *AutoRefresh {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoRefresh{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the job and starts the scheduler in the background.
// The first run happens one interval after Start.
func (a *AutoRefresh) Start() error {
	if a.interval <= 0 {
		a.logger.Info("auto refresh disabled")
		return nil
	}
	_, err := a.scheduler.Every(a.interval).WaitForSchedule().SingletonMode().Do(a.run)
	if err != nil {
		return err
	}
	a.scheduler.StartAsync()
	a.logger.Info("auto refresh started", zap.Duration("interval", a.interval))
	return nil
}

func (a *AutoRefresh) run() {
	a.runs.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err := a.target.RefreshDisplayed(ctx)
	switch {
	case err == nil:
		a.logger.Debug("auto refresh completed")
	case errors.Is(err, dashboard.ErrNothingToRefresh):
		a.logger.Debug("auto refresh skipped, nothing displayed")
	default:
		a.logger.Warn("auto refresh failed", zap.Error(err))
	}
}

// Runs returns how many times the job has fired.
func (a *AutoRefresh) Runs() int64 {
	return a.runs.Load()
}

// Stop stops the scheduler. Safe to call when Start was a no-op.
func (a *AutoRefresh) Stop() {
	if a.scheduler != nil && a.scheduler.IsRunning() {
		a.scheduler.Stop()
	}
}
