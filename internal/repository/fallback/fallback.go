package fallback

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/obs"
)

type Mode string

const (
	ModeSynthetic Mode = "synthetic"
	ModeStrict    Mode = "strict"
)

const (
	cashBase   = 400
	pointsBase = 15000
	spread     = 5000
)

var syntheticBatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farewatch_oracle_synthetic_batches_total",
	Help: "Oracle failures replaced by synthetic quotes.",
}, []string{"currency"})

var _ oracle.Oracle = (*Oracle)(nil)

// Oracle wraps another oracle. In synthetic mode any failure of the inner
// oracle yields one pseudo-random quote per known carrier instead of an error.
type Oracle struct {
	inner oracle.Oracle
	mode  Mode
	log   *zap.Logger
	intn  func(n int) int
}

func New(inner oracle.Oracle, mode Mode, log *zap.Logger) *Oracle {
	if mode == "" {
		mode = ModeSynthetic
	}
	return &Oracle{inner: inner, mode: mode, log: obs.Component(log, "oracle.fallback"), intn: rand.IntN}
}

func (o *Oracle) FetchQuotes(ctx context.Context, q oracle.Query) ([]monitor.Quote, error) {
	quotes, err := o.inner.FetchQuotes(ctx, q)
	if err == nil {
		return quotes, nil
	}
	if o.mode == ModeStrict || errors.Is(ctx.Err(), context.Canceled) {
		return nil, err
	}
	obs.WithTrace(ctx, o.log).Warn("oracle failed, using synthetic quotes",
		zap.String("route", q.Origin+"-"+q.Destination),
		zap.Error(err),
	)
	syntheticBatches.WithLabelValues(string(q.CurrencyType)).Inc()
	return o.Synthetic(q), nil
}

// Synthetic builds the placeholder batch for q.
func (o *Oracle) Synthetic(q oracle.Query) []monitor.Quote {
	base := cashBase
	if q.CurrencyType == monitor.CurrencyPoints {
		base = pointsBase
	}
	nonStop := map[string]bool{
		oracle.CarrierLATAM: true,
		oracle.CarrierGOL:   false,
		oracle.CarrierAZUL:  true,
	}
	out := make([]monitor.Quote, 0, len(oracle.KnownCarriers))
	for _, c := range oracle.KnownCarriers {
		out = append(out, monitor.Quote{
			Airline:      c,
			Price:        float64(base + o.intn(spread)),
			Timestamp:    q.Timestamp,
			Currency:     string(q.CurrencyType),
			CurrencyType: q.CurrencyType,
			IsNonStop:    nonStop[c],
			Synthetic:    true,
		})
	}
	return out
}
