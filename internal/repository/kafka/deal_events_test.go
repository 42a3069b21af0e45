package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestDealEvents_Publishes(t *testing.T) {
	w := &memWriter{}
	p := NewProducer(nil, "farewatch.deals")
	p.w = w
	sink := NewDealEvents(p)

	alert := notification.Alert{
		MonitorID: "m1", Airline: "LATAM", Price: 450, Timestamp: 1000,
		Route: "GRU → GIG", IsNonStop: true, RaisedAt: time.Unix(0, 0),
	}
	require.NoError(t, sink.Send(context.Background(), alert))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("m1"), w.msgs[0].Key)
	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, EventDealMatched, headers["event-type"])
	assert.Equal(t, "application/x-protobuf", headers["content-type"])

	var got structpb.Struct
	require.NoError(t, proto.Unmarshal(w.msgs[0].Value, &got))
	fields := got.AsMap()
	assert.Equal(t, "DealMatched", fields["type"])
	assert.Equal(t, "LATAM", fields["airline"])
	assert.Equal(t, 450.0, fields["price"])
	assert.Equal(t, true, fields["isNonStop"])
}

func TestDealEvents_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewProducer(nil, "t")
	p.w = &memWriter{err: boom}
	require.ErrorIs(t, NewDealEvents(p).Send(context.Background(), notification.Alert{MonitorID: "m"}), boom)
}

func TestCarrierHeaders(t *testing.T) {
	h := mapCarrierHeaders{}
	h.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", h.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, h.Keys())
	assert.Equal(t, []kafka.Header{{Key: "traceparent", Value: []byte("00-abc")}}, h.ToKafka())
}
