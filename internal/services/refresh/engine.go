package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/services/store"
)

var (
	ErrInFlight      = store.ErrBusy
	ErrBatchInFlight = errors.New("batch refresh already running")
)

type MonitorStore interface {
	Active() []monitor.Monitor
	BeginRefresh(id string) (monitor.Monitor, error)
	CommitRefresh(ctx context.Context, id string, quotes []monitor.Quote, ts int64) (monitor.Monitor, error)
	AbortRefresh(id string)
}

type Notifier interface {
	Notify(ctx context.Context, m monitor.Monitor, q monitor.Quote) (notification.Alert, bool, error)
}

type Options struct {
	// Timeout bounds one oracle call.
	Timeout time.Duration
	// MinInterval is the minimum spacing between oracle calls.
	MinInterval time.Duration
	Clock       clock.Clock
}

// Result is the outcome of one committed refresh.
type Result struct {
	Monitor  monitor.Monitor
	Matching []monitor.Quote
	Alerted  bool
}

type Report struct {
	Evaluated int `json:"evaluated"`
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Matched   int `json:"matched"`
}

var (
	mRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_refresh_total", Help: "Monitor refreshes committed",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_refresh_failures_total", Help: "Monitor refreshes that left the monitor unchanged",
	})
	mMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_refresh_matches_total", Help: "Refreshes with at least one quote at or below target",
	})
	mSynthetic = promauto.NewCounter(prometheus.CounterOpts{
		Name: "farewatch_synthetic_quotes_total", Help: "Synthetic quotes committed to history",
	})
	mOracleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "farewatch_oracle_duration_seconds", Help: "Oracle call latency",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90},
	})
	mBatchDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "farewatch_refresh_batch_duration_seconds", Help: "Duration of a full refresh pass",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

type Engine struct {
	store    MonitorStore
	oracle   oracle.Oracle
	notifier Notifier
	clock    clock.Clock
	limiter  *rate.Limiter
	timeout  time.Duration
	log      *zap.Logger

	batching atomic.Bool

	// idleMu guards idle, which holds a channel per monitor with a refresh
	// in flight. The channel is closed when that refresh returns.
	idleMu sync.Mutex
	idle   map[string]chan struct{}

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(log *zap.Logger, st MonitorStore, o oracle.Oracle, n Notifier, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:    st,
		oracle:   o,
		notifier: n,
		clock:    opts.Clock,
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  opts.Timeout,
		log:      obs.Component(log, "refresh"),
		idle:     map[string]chan struct{}{},
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// Refreshing reports whether a batch refresh is running.
func (e *Engine) Refreshing() bool { return e.batching.Load() }

// RefreshOne runs one fetch, merge, match and notify cycle. On any failure
// the monitor is left as it was apart from the updating flag.
func (e *Engine) RefreshOne(ctx context.Context, id string) (Result, error) {
	m, idle, err := e.begin(id)
	if err != nil {
		return Result{}, err
	}
	defer e.finish(id, idle)
	ts := e.clock.Now().UnixMilli()

	ctx, span := otel.Tracer("refresh").Start(ctx, "refresh.one", trace.WithAttributes(
		attribute.String("monitor.id", id),
		attribute.String("monitor.route", m.Origin+"-"+m.Destination),
	))
	defer span.End()
	log := obs.WithTrace(ctx, e.log).With(zap.String("monitor_id", id))

	quotes, err := e.fetch(ctx, m, ts)
	if err != nil {
		e.store.AbortRefresh(id)
		mFailed.Inc()
		span.RecordError(err)
		log.Warn("refresh failed", zap.Error(err))
		return Result{}, fmt.Errorf("refresh %s: %w", id, err)
	}

	updated, err := e.store.CommitRefresh(ctx, id, quotes, ts)
	if err != nil {
		mFailed.Inc()
		span.RecordError(err)
		log.Error("commit refresh", zap.Error(err))
		return Result{}, fmt.Errorf("refresh %s: %w", id, err)
	}
	mRefreshed.Inc()
	for _, q := range quotes {
		if q.Synthetic {
			mSynthetic.Inc()
		}
	}

	res := Result{Monitor: updated, Matching: monitor.MatchingQuotes(monitor.LatestPrices(updated), updated.TargetPrice)}
	span.SetAttributes(attribute.Int("quotes", len(quotes)), attribute.Int("matching", len(res.Matching)))
	log.Debug("refreshed", zap.Int("quotes", len(quotes)), zap.Int("matching", len(res.Matching)))

	if len(res.Matching) > 0 {
		mMatched.Inc()
		if updated.IsActive && e.notifier != nil {
			_, sent, err := e.notifier.Notify(ctx, updated, res.Matching[0])
			if err != nil {
				log.Warn("notify", zap.Error(err))
			}
			res.Alerted = sent
		}
	}
	return res, nil
}

func (e *Engine) begin(id string) (monitor.Monitor, chan struct{}, error) {
	e.idleMu.Lock()
	defer e.idleMu.Unlock()
	m, err := e.store.BeginRefresh(id)
	if err != nil {
		return monitor.Monitor{}, nil, err
	}
	idle := make(chan struct{})
	e.idle[id] = idle
	return m, idle, nil
}

// finish releases waiters of one refresh. A newer refresh of the same id that
// began after the commit keeps its own entry.
func (e *Engine) finish(id string, idle chan struct{}) {
	e.idleMu.Lock()
	defer e.idleMu.Unlock()
	close(idle)
	if e.idle[id] == idle {
		delete(e.idle, id)
	}
}

// whenIdle returns a channel that is closed once no refresh of id is running.
func (e *Engine) whenIdle(id string) <-chan struct{} {
	e.idleMu.Lock()
	defer e.idleMu.Unlock()
	if ch, ok := e.idle[id]; ok {
		return ch
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (e *Engine) fetch(ctx context.Context, m monitor.Monitor, ts int64) ([]monitor.Quote, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	quotes, err := e.oracle.FetchQuotes(ctx, oracle.QueryFor(m, ts))
	mOracleDur.Observe(time.Since(start).Seconds())
	return quotes, err
}

// RefreshAll refreshes the active monitors one after another in display
// order. A failing monitor does not stop the pass.
func (e *Engine) RefreshAll(ctx context.Context) (Report, error) {
	if !e.batching.CompareAndSwap(false, true) {
		return Report{}, ErrBatchInFlight
	}
	defer e.batching.Store(false)

	start := time.Now()
	ctx, span := otel.Tracer("refresh").Start(ctx, "refresh.all")
	defer span.End()

	var rep Report
	for _, m := range e.store.Active() {
		if ctx.Err() != nil {
			break
		}
		rep.Evaluated++
		res, err := e.RefreshOne(ctx, m.ID)
		switch {
		case errors.Is(err, ErrInFlight), errors.Is(err, store.ErrNotFound):
			rep.Skipped++
		case err != nil:
			rep.Failed++
		default:
			rep.Refreshed++
			if len(res.Matching) > 0 {
				rep.Matched++
			}
		}
	}
	mBatchDur.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("batch.evaluated", rep.Evaluated),
		attribute.Int("batch.refreshed", rep.Refreshed),
		attribute.Int("batch.failed", rep.Failed),
	)
	obs.WithTrace(ctx, e.log).Info("refresh pass done",
		zap.Int("evaluated", rep.Evaluated),
		zap.Int("refreshed", rep.Refreshed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Int("matched", rep.Matched),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, ctx.Err()
}

// RefreshAfter schedules a background refresh of id after delay. When a
// refresh of id is already running it waits for that one to return and then
// runs its own, so the monitor ends up priced with its current parameters.
// Pending refreshes are dropped by Close.
func (e *Engine) RefreshAfter(id string, delay time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		select {
		case <-e.baseCtx.Done():
			return
		case <-e.clock.After(delay):
		}
		for {
			_, err := e.RefreshOne(e.baseCtx, id)
			if !errors.Is(err, ErrInFlight) {
				if err != nil {
					e.log.Debug("delayed refresh", zap.String("monitor_id", id), zap.Error(err))
				}
				return
			}
			select {
			case <-e.baseCtx.Done():
				return
			case <-e.whenIdle(id):
			}
		}
	}()
}

// Close cancels background refreshes and waits for them to return.
func (e *Engine) Close() {
	e.stop()
	e.wg.Wait()
}
