package kafka

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/NordCoder/Farewatch/internal/obs"
)

const (
	headerContentType = "content-type"
	headerEventType   = "event-type"
	contentTypeProto  = "application/x-protobuf"
)

var mPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "farewatch_kafka_messages_total",
	Help: "Messages written to kafka by topic and result.",
}, []string{"topic", "result"})

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes protobuf events to one topic. Messages with the same key
// land on the same partition, so events of one monitor stay ordered.
type Producer struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   zap.NewNop(),
	}
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "kafka.producer"), zap.String("topic", p.topic))
	return &cp
}

// PublishProto writes m under key. eventType goes to the event-type header
// next to the trace context.
func (p *Producer) PublishProto(ctx context.Context, key []byte, eventType string, m proto.Message) error {
	value, err := proto.Marshal(m)
	if err != nil {
		p.log.Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "publish "+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer span.End()

	hdrs := mapCarrierHeaders{
		headerContentType: contentTypeProto,
		headerEventType:   eventType,
	}
	otel.GetTextMapPropagator().Inject(ctx, hdrs)

	msg := kafka.Message{Key: key, Value: value, Headers: hdrs.ToKafka()}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		mPublished.WithLabelValues(p.topic, "error").Inc()
		span.RecordError(err)
		obs.WithTrace(ctx, p.log).Warn("publish failed", zap.String("event_type", eventType), zap.Error(err))
		return err
	}
	mPublished.WithLabelValues(p.topic, "ok").Inc()
	obs.WithTrace(ctx, p.log).Debug("event published", zap.String("event_type", eventType), zap.ByteString("key", key))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
