package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/domain/outbox"
	"github.com/NordCoder/Farewatch/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + string(kind)
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func(ctx context.Context) error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(string(kind)).Inc()
		}
		return err
	}
}

// MakeGlobalHandler relays deal_matched messages to sink.
func MakeGlobalHandler(sink notification.Sink, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindDealMatched:
			base := func(ctx context.Context, data []byte) error {
				var a notification.Alert
				if err := json.Unmarshal(data, &a); err != nil {
					return fmt.Errorf("unmarshal deal_matched payload: %w", err)
				}
				return sink.Send(ctx, a)
			}
			return instrument(kind, base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %q", kind)
		}
	}
}
