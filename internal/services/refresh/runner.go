package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/obs"
)

type BatchRefresher interface {
	RefreshAll(ctx context.Context) (Report, error)
}

var (
	mTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_scheduler_ticks_total", Help: "Scheduled refresh passes started",
	})
	mTickErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_scheduler_errors_total", Help: "Scheduled passes that could not run",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "farewatch_scheduler_tick_duration_seconds", Help: "Scheduler tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Runner triggers a refresh pass on a cron schedule until its context ends.
// Ticks missed while the process was down are not replayed.
type Runner struct {
	Log      *zap.Logger
	Batch    BatchRefresher
	Schedule cron.Schedule
	Clock    clock.Clock
}

func NewRunner(log *zap.Logger, batch BatchRefresher, spec string, clk clock.Clock) (*Runner, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Runner{
		Log:      obs.Component(log, "refresh.runner"),
		Batch:    batch,
		Schedule: sched,
		Clock:    clk,
	}, nil
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	mTicks.Inc()
	rep, err := r.Batch.RefreshAll(ctx)
	switch {
	case errors.Is(err, ErrBatchInFlight):
		r.Log.Info("previous pass still running, tick skipped")
	case err != nil && ctx.Err() == nil:
		mTickErr.Inc()
		r.Log.Warn("tick error", zap.Error(err))
	default:
		r.Log.Debug("tick done", zap.Int("refreshed", rep.Refreshed), zap.Int("failed", rep.Failed))
	}
	mLoopDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	for {
		now := r.Clock.Now()
		wait := r.Schedule.Next(now).Sub(now)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.Clock.After(wait):
			r.tick(ctx)
		}
	}
}
