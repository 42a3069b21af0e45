package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/domain/outbox"
)

var _ notification.Sink = (*Sink)(nil)

// Sink records alerts in the outbox instead of delivering them. The runner
// relays them later, so a broker outage does not lose deals.
type Sink struct {
	repo outbox.Repository
	name string
}

func NewSink(repo outbox.Repository, name string) *Sink {
	return &Sink{repo: repo, name: name}
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Send(ctx context.Context, a notification.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return s.repo.Enqueue(ctx, AlertKey(a), outbox.KindDealMatched, data, carrier)
}

// AlertKey identifies one alert: a monitor raises at most one per airline and batch.
func AlertKey(a notification.Alert) string {
	return a.MonitorID + ":" + strconv.FormatInt(a.Timestamp, 10) + ":" + a.Airline
}
