package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
)

type stubOracle struct {
	quotes []monitor.Quote
	err    error
}

func (s stubOracle) FetchQuotes(context.Context, oracle.Query) ([]monitor.Quote, error) {
	return s.quotes, s.err
}

func TestFallback_PassesThroughSuccess(t *testing.T) {
	want := []monitor.Quote{{Airline: "GOL", Price: 1}}
	o := New(stubOracle{quotes: want}, ModeSynthetic, nil)
	got, err := o.FetchQuotes(context.Background(), oracle.Query{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFallback_SyntheticOnError(t *testing.T) {
	o := New(stubOracle{err: errors.New("down")}, ModeSynthetic, nil)
	o.intn = func(n int) int { return n - 1 }

	q := oracle.Query{CurrencyType: monitor.CurrencyPoints, Timestamp: 99}
	got, err := o.FetchQuotes(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, c := range []string{"LATAM", "GOL", "AZUL"} {
		assert.Equal(t, c, got[i].Airline)
		assert.Equal(t, float64(15000+4999), got[i].Price)
		assert.Equal(t, int64(99), got[i].Timestamp)
		assert.Equal(t, "POINTS", got[i].Currency)
		assert.Empty(t, got[i].BookingURL)
		assert.True(t, got[i].Synthetic)
	}
	assert.True(t, got[0].IsNonStop)
	assert.False(t, got[1].IsNonStop)
	assert.True(t, got[2].IsNonStop)
}

func TestFallback_CashRange(t *testing.T) {
	o := New(stubOracle{err: errors.New("down")}, "", nil)
	for i := 0; i < 50; i++ {
		got, err := o.FetchQuotes(context.Background(), oracle.Query{CurrencyType: monitor.CurrencyCash})
		require.NoError(t, err)
		for _, q := range got {
			assert.GreaterOrEqual(t, q.Price, 400.0)
			assert.Less(t, q.Price, 5400.0)
		}
	}
}

func TestFallback_StrictReturnsError(t *testing.T) {
	boom := errors.New("down")
	o := New(stubOracle{err: boom}, ModeStrict, nil)
	_, err := o.FetchQuotes(context.Background(), oracle.Query{})
	require.ErrorIs(t, err, boom)
}
