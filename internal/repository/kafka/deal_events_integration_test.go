//go:build integration

package kafka

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Farewatch/internal/domain/notification"
)

func TestDealEvents_PublishesToBroker(t *testing.T) {
	bootstrap := os.Getenv("IT_BOOTSTRAP")
	if bootstrap == "" {
		bootstrap = "127.0.0.1:19092"
	}
	topic := "it.farewatch.deals." + time.Now().Format("150405")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := BootstrapProducer(ctx, []string{bootstrap}, topic, zap.NewNop())
	defer p.Close()

	alert := notification.Alert{
		MonitorID: "m-it",
		Airline:   "LATAM",
		Price:     450,
		Timestamp: time.Now().UnixMilli(),
		Route:     "GRU → GIG",
		RaisedAt:  time.Now(),
	}
	require.NoError(t, NewDealEvents(p).Send(ctx, alert))

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{bootstrap},
		Topic:    topic,
		GroupID:  "it-farewatch",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	msg, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m-it", string(msg.Key))

	var got structpb.Struct
	require.NoError(t, proto.Unmarshal(msg.Value, &got))
	assert.Equal(t, "DealMatched", got.Fields["type"].GetStringValue())
	assert.Equal(t, "LATAM", got.Fields["airline"].GetStringValue())
	assert.Equal(t, 450.0, got.Fields["price"].GetNumberValue())
}
