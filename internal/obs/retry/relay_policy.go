package retry

import (
	"time"

	"go.uber.org/zap"
)

// RelayPolicy is used when forwarding outbox messages to a broker. Undelivered
// messages stay in the outbox, so the budget is short.
func RelayPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_relay",
		Attempts: 3,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("relay attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
