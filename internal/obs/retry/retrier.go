package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max. Jitter spreads each delay
// uniformly by that fraction in both directions.
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			d = b.Max
			break
		}
	}
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*b.Jitter))
	}
	return d
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

var (
	mAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farewatch_retry_attempts_total",
		Help: "Calls made inside retry.Do, including the first one.",
	}, []string{"policy"})
	mOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "farewatch_retry_outcomes_total",
		Help: "retry.Do results by outcome.",
	}, []string{"policy", "outcome"})
	mElapsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "farewatch_retry_duration_seconds",
		Help:    "Wall time spent inside retry.Do.",
		Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 15, 45, 120},
	}, []string{"policy"})
)

// Do calls fn until it succeeds, returns an error Retryable rejects, uses up
// Attempts or ctx ends. The last error from fn is returned.
func Do(ctx context.Context, fn func(ctx context.Context) error, p Policy) error {
	name := p.Name
	if name == "" {
		name = "default"
	}
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return err != nil }
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second}
	}

	start := time.Now()
	defer func() { mElapsed.WithLabelValues(name).Observe(time.Since(start).Seconds()) }()
	span := trace.SpanFromContext(ctx)

	var err error
	for i := range attempts {
		mAttempts.WithLabelValues(name).Inc()
		if err = fn(ctx); err == nil {
			mOutcome.WithLabelValues(name, "ok").Inc()
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.policy", name),
			attribute.Int("retry.attempt", i+1),
			attribute.String("retry.error", err.Error()),
		))
		if i == attempts-1 || !retryable(err) {
			break
		}

		wait := time.NewTimer(backoff.Next(i))
		select {
		case <-ctx.Done():
			wait.Stop()
			mOutcome.WithLabelValues(name, "canceled").Inc()
			return ctx.Err()
		case <-wait.C:
		}
	}

	mOutcome.WithLabelValues(name, "gave_up").Inc()
	if p.OnExhaust != nil {
		p.OnExhaust(err)
	}
	return err
}
