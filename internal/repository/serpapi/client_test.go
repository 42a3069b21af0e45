package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
)

const payload = `{
 "best_flights":[
  {"price":612,"flights":[{"airline":"LATAM"}],"layovers":[]},
  {"price":480,"flights":[{"airline":"GOL"}],"layovers":[{"id":"BSB"}]}
 ],
 "other_flights":[
  {"price":590,"flights":[{"airline":"LATAM Airlines"}],"layovers":[{"id":"CNF"}]},
  {"price":300,"flights":[{"airline":"TAP"}],"layovers":[]},
  {"price":700,"flights":[{"airline":"Azul"}],"layovers":[]}
 ],
 "search_metadata":{"google_flights_url":"https://google.example/flights"}
}`

func query() oracle.Query {
	return oracle.Query{
		Origin: "GRU", Destination: "GIG", Date: "2025-03-01",
		TripType: monitor.OneWay, CurrencyType: monitor.CurrencyCash, Timestamp: 42,
	}
}

func TestFetchQuotes_CheapestPerCarrier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google_flights", r.URL.Query().Get("engine"))
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	quotes, err := c.FetchQuotes(context.Background(), query())
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	assert.Equal(t, "LATAM", quotes[0].Airline)
	assert.Equal(t, 590.0, quotes[0].Price)
	assert.False(t, quotes[0].IsNonStop)
	assert.Equal(t, "GOL", quotes[1].Airline)
	assert.Equal(t, "AZUL", quotes[2].Airline)
	assert.True(t, quotes[2].IsNonStop)
	for _, q := range quotes {
		assert.Equal(t, int64(42), q.Timestamp)
		assert.Equal(t, "https://google.example/flights", q.BookingURL)
	}
}

func TestFetchQuotes_RateLimitedRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, Retries: 1, Backoff: time.Millisecond}, nil)
	_, err := c.FetchQuotes(context.Background(), query())
	require.ErrorIs(t, err, oracle.ErrRateLimited)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchQuotes_PointsUnsupported(t *testing.T) {
	q := query()
	q.CurrencyType = monitor.CurrencyPoints
	_, err := New(Config{APIKey: "k"}, nil).FetchQuotes(context.Background(), q)
	require.ErrorIs(t, err, oracle.ErrUnsupported)
}

func TestGoogleFlightsURL_RoundTrip(t *testing.T) {
	q := query()
	q.TripType = monitor.RoundTrip
	q.ReturnDate = "2025-03-10"
	q.NonStopOnly = true
	u := GoogleFlightsURL(q)
	assert.Contains(t, u, "r=2025-03-10")
	assert.Contains(t, u, "sc=1")
	assert.Contains(t, u, "f=GRU")
}
