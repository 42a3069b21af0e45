package notification

import "context"

// Sink delivers an alert to one channel (log, email, chat, broker, live UI).
type Sink interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}
