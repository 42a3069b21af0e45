package kafka

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
)

var _ notification.Sink = (*DealEvents)(nil)

const EventDealMatched = "DealMatched"

// DealEvents publishes a DealMatched event per raised alert, keyed by monitor id.
type DealEvents struct {
	p *Producer
}

func NewDealEvents(p *Producer) *DealEvents { return &DealEvents{p: p} }

func (e *DealEvents) Name() string { return "kafka" }

func (e *DealEvents) Send(ctx context.Context, a notification.Alert) error {
	msg, err := DealMatched(a)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(a.MonitorID), EventDealMatched, msg)
}

func DealMatched(a notification.Alert) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"type":      EventDealMatched,
		"monitorId": a.MonitorID,
		"airline":   a.Airline,
		"price":     a.Price,
		"timestamp": float64(a.Timestamp),
		"route":     a.Route,
		"isNonStop": a.IsNonStop,
		"url":       a.URL,
		"title":     a.Title,
		"body":      a.Body,
		"synthetic": a.Synthetic,
		"raisedAt":  a.RaisedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return nil, fmt.Errorf("build DealMatched: %w", err)
	}
	return s, nil
}
