package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/clock"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/notification"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/services/store"
)

type memSlot struct {
	mu   sync.Mutex
	body []byte
}

func (m *memSlot) Load(context.Context) ([]byte, error) { return m.body, nil }
func (m *memSlot) Save(_ context.Context, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = b
	return nil
}

type scriptedOracle struct {
	mu      sync.Mutex
	calls   []oracle.Query
	quotes  []monitor.Quote
	err     error
	block   chan struct{}
	started chan struct{}
}

func (o *scriptedOracle) FetchQuotes(ctx context.Context, q oracle.Query) ([]monitor.Quote, error) {
	o.mu.Lock()
	o.calls = append(o.calls, q)
	block, started := o.block, o.started
	o.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.quotes, o.err
}

func (o *scriptedOracle) destinations() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.calls))
	for i, q := range o.calls {
		out[i] = q.Destination
	}
	return out
}

type recordNotifier struct {
	mu  sync.Mutex
	got []monitor.Quote
}

func (r *recordNotifier) Notify(_ context.Context, _ monitor.Monitor, q monitor.Quote) (notification.Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, q)
	return notification.Alert{}, true, nil
}

func (r *recordNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func ptr(v float64) *float64 { return &v }

var epoch = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	oracle   *scriptedOracle
	notifier *recordNotifier
	clock    *clock.Fake
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New(&memSlot{}, zap.NewNop())
	require.NoError(t, st.Load(context.Background()))
	f := &fixture{
		store:    st,
		oracle:   &scriptedOracle{},
		notifier: &recordNotifier{},
		clock:    clock.NewFake(epoch),
	}
	f.engine = NewEngine(zap.NewNop(), st, f.oracle, f.notifier, Options{Clock: f.clock, Timeout: time.Second})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) create(t *testing.T, origin string, target float64) monitor.Monitor {
	t.Helper()
	m, err := f.store.Create(context.Background(), monitor.Draft{
		Origin: origin, Destination: "GIG", Date: "2025-03-01",
		TripType: monitor.OneWay, CurrencyType: monitor.CurrencyCash, TargetPrice: ptr(target),
	})
	require.NoError(t, err)
	return m
}

func TestRefreshOne_Scenario(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.oracle.quotes = []monitor.Quote{
		{Airline: "LATAM", Price: 450, IsNonStop: true},
		{Airline: "GOL", Price: 600},
		{Airline: "AZUL", Price: 480, IsNonStop: true},
	}

	res, err := f.engine.RefreshOne(context.Background(), m.ID)
	require.NoError(t, err)

	got := res.Monitor
	assert.False(t, got.Updating)
	require.NotNil(t, got.LastChecked)
	assert.Equal(t, epoch.UnixMilli(), *got.LastChecked)

	deals := monitor.MatchingDeals(got)
	require.Len(t, deals, 2)
	assert.Equal(t, "LATAM", deals[0].Airline)
	assert.Equal(t, "AZUL", deals[1].Airline)

	best, ok := monitor.BestOffer(got)
	require.True(t, ok)
	assert.Equal(t, "LATAM", best.Airline)
	assert.True(t, monitor.IsTargetMet(got))

	require.Len(t, f.notifier.got, 1)
	assert.Equal(t, "LATAM", f.notifier.got[0].Airline)
	assert.True(t, res.Alerted)

	require.Len(t, f.oracle.calls, 1)
	assert.Equal(t, "GRU", f.oracle.calls[0].Origin)
	assert.Equal(t, epoch.UnixMilli(), f.oracle.calls[0].Timestamp)
}

func TestRefreshOne_NoMatchNoNotification(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 100)
	f.oracle.quotes = []monitor.Quote{{Airline: "GOL", Price: 600}}

	res, err := f.engine.RefreshOne(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Matching)
	assert.Zero(t, f.notifier.count())
}

func TestRefreshOne_PausedMonitorDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	_, err := f.store.Toggle(context.Background(), m.ID)
	require.NoError(t, err)
	f.oracle.quotes = []monitor.Quote{{Airline: "GOL", Price: 1}}

	res, err := f.engine.RefreshOne(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, res.Matching, 1)
	assert.False(t, res.Alerted)
	assert.Zero(t, f.notifier.count())
}

func TestRefreshOne_OracleErrorLeavesMonitorUnchanged(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.oracle.err = errors.New("provider down")

	_, err := f.engine.RefreshOne(context.Background(), m.ID)
	require.Error(t, err)

	got, err := f.store.Get(m.ID)
	require.NoError(t, err)
	assert.False(t, got.Updating)
	assert.Empty(t, got.History)
	assert.Nil(t, got.LastChecked)
}

func TestRefreshOne_InFlightRefused(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.oracle.block = make(chan struct{})
	f.oracle.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.RefreshOne(context.Background(), m.ID)
		done <- err
	}()
	<-f.oracle.started

	_, err := f.engine.RefreshOne(context.Background(), m.ID)
	require.ErrorIs(t, err, ErrInFlight)

	close(f.oracle.block)
	require.NoError(t, <-done)
}

func TestRefreshOne_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.RefreshOne(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshAll_SequentialActiveOnly(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "GRU", 500)
	b := f.create(t, "CGH", 500)
	paused := f.create(t, "BSB", 500)
	_, err := f.store.Toggle(context.Background(), paused.ID)
	require.NoError(t, err)
	f.oracle.quotes = []monitor.Quote{{Airline: "GOL", Price: 450}}

	rep, err := f.engine.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Evaluated: 2, Refreshed: 2, Matched: 2}, rep)
	assert.False(t, f.engine.Refreshing())

	require.Len(t, f.oracle.calls, 2)
	assert.Equal(t, "CGH", f.oracle.calls[0].Origin, "display order is newest first")
	assert.Equal(t, "GRU", f.oracle.calls[1].Origin)

	for _, id := range []string{a.ID, b.ID} {
		got, err := f.store.Get(id)
		require.NoError(t, err)
		assert.NotNil(t, got.LastChecked)
	}
	got, err := f.store.Get(paused.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastChecked)
}

func TestRefreshAll_FailuresIsolated(t *testing.T) {
	f := newFixture(t)
	f.create(t, "GRU", 500)
	f.create(t, "CGH", 500)
	f.oracle.err = errors.New("down")

	rep, err := f.engine.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Evaluated)
	assert.Equal(t, 2, rep.Failed)
	assert.Len(t, f.oracle.calls, 2)
}

func TestRefreshAll_OneBatchAtATime(t *testing.T) {
	f := newFixture(t)
	f.create(t, "GRU", 500)
	f.oracle.block = make(chan struct{})
	f.oracle.started = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.engine.RefreshAll(context.Background())
	}()
	<-f.oracle.started
	assert.True(t, f.engine.Refreshing())

	_, err := f.engine.RefreshAll(context.Background())
	require.ErrorIs(t, err, ErrBatchInFlight)

	close(f.oracle.block)
	<-done
	assert.False(t, f.engine.Refreshing())
}

func TestRefreshAfter(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.oracle.started = make(chan struct{}, 1)

	f.engine.RefreshAfter(m.ID, 100*time.Millisecond)
	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, time.Second, time.Millisecond)
	f.clock.Advance(100 * time.Millisecond)
	<-f.oracle.started

	require.Eventually(t, func() bool {
		got, err := f.store.Get(m.ID)
		return err == nil && got.LastChecked != nil
	}, time.Second, time.Millisecond)
}

func TestRefreshAfter_EditDuringRefreshRunsAgain(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.oracle.quotes = []monitor.Quote{{Airline: "GOL", Price: 450}}
	f.oracle.block = make(chan struct{})
	f.oracle.started = make(chan struct{}, 2)

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.RefreshOne(context.Background(), m.ID)
		done <- err
	}()
	<-f.oracle.started

	d := monitor.DraftFrom(m)
	d.Destination = "SSA"
	_, err := f.store.Update(context.Background(), m.ID, d)
	require.NoError(t, err)

	f.engine.RefreshAfter(m.ID, 100*time.Millisecond)
	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, time.Second, time.Millisecond)
	f.clock.Advance(100 * time.Millisecond)

	close(f.oracle.block)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool { return len(f.oracle.destinations()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"GIG", "SSA"}, f.oracle.destinations())
	require.Eventually(t, func() bool {
		got, err := f.store.Get(m.ID)
		return err == nil && !got.Updating && len(monitor.LatestPrices(got)) == 1
	}, time.Second, time.Millisecond)
}

func TestRefreshAfter_DroppedOnClose(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "GRU", 500)
	f.engine.RefreshAfter(m.ID, time.Hour)
	f.engine.Close()
	assert.Empty(t, f.oracle.calls)
}
