package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

type Kind string

const (
	KindDealMatched Kind = "deal_matched"
)

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

type Repository interface {
	// Enqueue is idempotent on key. trace carries the W3C propagation headers
	// of the producing request.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte, trace map[string]string) error

	// PickBatch claims up to batch messages that are new or whose claim is
	// older than inProgressTTL.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error

	// PurgeDelivered deletes delivered messages last touched before cutoff and
	// reports how many went.
	PurgeDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
