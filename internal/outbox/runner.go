package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/outbox"
	"github.com/NordCoder/Farewatch/internal/obs"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_picked_total", Help: "Messages picked into processing.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_err_total", Help: "Handler errors.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Size of last picked batch.",
	})
	mPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_purged_total", Help: "Delivered messages removed after retention.",
	})
)

type Options struct {
	Workers       int
	BatchSize     int
	WaitTime      time.Duration
	InProgressTTL time.Duration
	// Retention keeps delivered rows around for duplicate suppression. Zero
	// keeps them forever.
	Retention time.Duration
	Clock     func() time.Time
}

type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	opts     Options
}

func NewRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.WaitTime <= 0 {
		opts.WaitTime = time.Second
	}
	if opts.InProgressTTL <= 0 {
		opts.InProgressTTL = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{log: obs.Component(log, "outbox"), repo: repo, dispatch: dispatch, opts: opts}
}

// Run polls the outbox until ctx is done and waits for the workers to stop.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go r.worker(ctx, &wg)
	}
	if r.opts.Retention > 0 {
		wg.Add(1)
		go r.janitor(ctx, &wg)
	}
	wg.Wait()
}

func (r *Runner) janitor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(min(r.opts.Retention/2, time.Hour))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Purge(ctx)
		}
	}
}

// Purge drops delivered messages older than the retention window. Once a row
// is gone the same alert key can be enqueued again.
func (r *Runner) Purge(ctx context.Context) {
	if r.opts.Retention <= 0 {
		return
	}
	n, err := r.repo.PurgeDelivered(ctx, r.opts.Clock().Add(-r.opts.Retention))
	if err != nil {
		mErr.Inc()
		r.log.Warn("outbox purge error", zap.Error(err))
		return
	}
	if n > 0 {
		mPurged.Add(float64(n))
		r.log.Debug("outbox purged", zap.Int64("rows", n))
	}
}

func (r *Runner) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	r.log.Info("outbox worker started", zap.Duration("wait", r.opts.WaitTime))

	ticker := time.NewTicker(r.opts.WaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox worker stop")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick claims one batch, dispatches every message and marks the delivered ones.
func (r *Runner) Tick(ctx context.Context) {
	t0 := time.Now()
	defer func() { mTickDur.Observe(time.Since(t0).Seconds()) }()

	tr := otel.Tracer("outbox.runner")
	prop := otel.GetTextMapPropagator()

	ctxSpan, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.opts.BatchSize),
		attribute.String("in_progress_ttl", r.opts.InProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctxSpan, r.opts.BatchSize, r.opts.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		parent := prop.Extract(ctx, propagation.MapCarrier{
			"traceparent": m.Traceparent,
			"tracestate":  m.Tracestate,
			"baggage":     m.Baggage,
		})
		msgCtx, msgSpan := tr.Start(parent, "outbox.dispatch",
			trace.WithAttributes(
				attribute.String("outbox.key", m.IdempotencyKey),
				attribute.String("outbox.kind", string(m.Kind)),
			),
		)

		handler, herr := r.dispatch(m.Kind)
		if herr != nil {
			msgSpan.RecordError(herr)
			mErr.Inc()
			obs.WithTrace(msgCtx, r.log).Error("no handler for kind",
				zap.String("kind", string(m.Kind)), zap.Error(herr))
			msgSpan.End()
			continue
		}
		if err := handler(msgCtx, m.Data); err != nil {
			msgSpan.RecordError(err)
			mErr.Inc()
			obs.WithTrace(msgCtx, r.log).Error("handler error",
				zap.String("kind", string(m.Kind)), zap.Error(err))
			msgSpan.End()
			continue
		}
		msgSpan.End()
		okKeys = append(okKeys, m.IdempotencyKey)
		mOk.Inc()
	}

	if err := r.repo.MarkSuccess(ctxSpan, okKeys); err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("mark success error", zap.Error(err))
	}
}
