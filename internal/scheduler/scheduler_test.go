package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
)

type countingRefresher struct {
	calls atomic.Int64
	err   error
}

func (c *countingRefresher) RefreshDisplayed(ctx context.Context) error {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("refresh called without deadline")
	}
	return c.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAutoRefresh_Disabled(t *testing.T) {
	r := &countingRefresher{}
	a := New(r, 0, 0, nil)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := r.calls.Load(); n != 0 {
		t.Errorf("Refresh calls = %d, want 0 when disabled", n)
	}
}

func TestAutoRefresh_RunsPeriodically(t *testing.T) {
	r := &countingRefresher{}
	a := New(r, 100*time.Millisecond, time.Second, nil)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	waitFor(t, func() bool { return r.calls.Load() >= 2 })
	if a.Runs() < 2 {
		t.Errorf("Runs() = %d, want >= 2", a.Runs())
	}
}

// TestAutoRefresh_LogsOutcomes verifies an empty dashboard is logged at debug
// and a failed refresh at warn.
func TestAutoRefresh_LogsOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		level   zapcore.Level
	}{
		{"nothing displayed", dashboard.ErrNothingToRefresh, "auto refresh skipped, nothing displayed", zap.DebugLevel},
		{"lookup failed", dashboard.ErrLookupFailed, "auto refresh failed", zap.WarnLevel},
		{"ok", nil, "auto refresh completed", zap.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			a := New(&countingRefresher{err: tt.err}, time.Minute, time.Second, zap.New(core))

			a.run()

			entries := logs.FilterMessage(tt.message).All()
			if len(entries) != 1 {
				t.Fatalf("logs %q = %d, want 1 (all: %v)", tt.message, len(entries), logs.All())
			}
			if entries[0].Level != tt.level {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.level)
			}
		})
	}
}

func TestAutoRefresh_StopWithoutStart(t *testing.T) {
	a := New(&countingRefresher{}, time.Minute, 0, nil)
	a.Stop()
}
