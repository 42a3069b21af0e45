package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
)

func testQuery() oracle.Query {
	return oracle.Query{
		Origin:       "GRU",
		Destination:  "GIG",
		Date:         "2025-03-01",
		TripType:     monitor.OneWay,
		CurrencyType: monitor.CurrencyCash,
		Timestamp:    1_700_000_000_000,
	}
}

func candidate(t *testing.T, text string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	require.NoError(t, err)
	return b
}

func newClient(srvURL string, retries int) *Client {
	return New(Config{APIKey: "k", BaseURL: srvURL, Retries: retries, Backoff: time.Millisecond}, zap.NewNop())
}

func TestFetchQuotes_ParsesAndNormalises(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-3-flash-preview:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write(candidate(t, `[
			{"airline":"Latam","price":450,"currency":"BRL","isNonStop":true,"bookingUrl":"https://latam.example"},
			{"airline":"gol linhas","price":520.5,"currency":"BRL","isNonStop":false,"bookingUrl":""}
		]`))
	}))
	defer srv.Close()

	quotes, err := newClient(srv.URL, 0).FetchQuotes(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "LATAM", quotes[0].Airline)
	assert.Equal(t, 450.0, quotes[0].Price)
	assert.True(t, quotes[0].IsNonStop)
	assert.Equal(t, int64(1_700_000_000_000), quotes[0].Timestamp)
	assert.Equal(t, monitor.CurrencyCash, quotes[0].CurrencyType)
	assert.Equal(t, "GOLLINHAS", quotes[1].Airline)

	assert.True(t, gjson.GetBytes(gotBody, "tools.0.google_search").Exists())
	assert.Equal(t, "ARRAY", gjson.GetBytes(gotBody, "generationConfig.responseSchema.type").String())
	assert.Contains(t, gjson.GetBytes(gotBody, "contents.0.parts.0.text").String(), "from GRU to GIG")
}

func TestFetchQuotes_EmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(candidate(t, "[]"))
	}))
	defer srv.Close()

	quotes, err := newClient(srv.URL, 0).FetchQuotes(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestFetchQuotes_RetriesTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(candidate(t, `[{"airline":"AZUL","price":99,"currency":"BRL","isNonStop":true}]`))
	}))
	defer srv.Close()

	quotes, err := newClient(srv.URL, 2).FetchQuotes(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchQuotes_AuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 3).FetchQuotes(context.Background(), testQuery())
	require.ErrorIs(t, err, oracle.ErrAuthRequired)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchQuotes_MalformedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(candidate(t, "sorry, no prices today"))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, 0).FetchQuotes(context.Background(), testQuery())
	require.ErrorIs(t, err, oracle.ErrBadResponse)
}

func TestFetchQuotes_MissingKey(t *testing.T) {
	_, err := New(Config{}, nil).FetchQuotes(context.Background(), testQuery())
	require.ErrorIs(t, err, oracle.ErrAuthRequired)
}

func TestBuildPrompt(t *testing.T) {
	q := testQuery()
	q.TripType = monitor.RoundTrip
	q.ReturnDate = "2025-03-10"
	q.NonStopOnly = true
	q.CurrencyType = monitor.CurrencyPoints

	p := buildPrompt(q)
	assert.Contains(t, p, "round-trip flights departing on 2025-03-01 and returning on 2025-03-10")
	assert.Contains(t, p, "STRICTLY direct (non-stop) flights only")
	assert.Contains(t, p, "Smiles for GOL, LATAM Pass for LATAM, TudoAzul for Azul")
	assert.Contains(t, p, "LATAM, GOL, AZUL")

	p = buildPrompt(testQuery())
	assert.Contains(t, p, "one-way flights departing on 2025-03-01")
	assert.Contains(t, p, "with or without stops")
	assert.Contains(t, p, "BRL (cash)")
}

func TestParseQuotes_CodeFence(t *testing.T) {
	quotes, err := parseQuotes("```json\n[{\"airline\":\"gol\",\"price\":10}]\n```", testQuery())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "GOL", quotes[0].Airline)
	assert.Equal(t, "BRL", quotes[0].Currency)
}
