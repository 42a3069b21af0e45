package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/clock"
)

type countingBatch struct{ n atomic.Int32 }

func (c *countingBatch) RefreshAll(context.Context) (Report, error) {
	c.n.Add(1)
	return Report{}, nil
}

func TestRunner_TicksOnSchedule(t *testing.T) {
	clk := clock.NewFake(epoch)
	batch := &countingBatch{}
	r, err := NewRunner(zap.NewNop(), batch, "@every 15m", clk)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitForTimer := func() {
		require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	}

	waitForTimer()
	assert.Equal(t, int32(0), batch.n.Load(), "no pass on start")

	clk.Advance(14 * time.Minute)
	assert.Equal(t, int32(0), batch.n.Load())

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return batch.n.Load() == 1 }, time.Second, time.Millisecond)

	waitForTimer()
	clk.Advance(15 * time.Minute)
	require.Eventually(t, func() bool { return batch.n.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestNewRunner_BadSchedule(t *testing.T) {
	_, err := NewRunner(nil, &countingBatch{}, "every now and then", nil)
	require.Error(t, err)
}
