package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// OraclePolicy retries the errors classified as retryable by the caller with
// exponential backoff starting at base.
func OraclePolicy(log *zap.Logger, retries int, base time.Duration, retryable func(error) bool) Policy {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = 400 * time.Millisecond
	}
	return Policy{
		Name:      "oracle",
		Attempts:  retries + 1,
		Backoff:   ExpoJitter{Base: base, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: retryable,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("oracle attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Warn("oracle retries exhausted", zap.Error(err))
			}
		},
	}
}
