package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(ts int64, prices map[string]float64, order ...string) []Quote {
	out := make([]Quote, 0, len(order))
	for _, a := range order {
		out = append(out, Quote{Airline: a, Price: prices[a], Timestamp: ts})
	}
	return out
}

func TestAppendBatch_KeepsNewestWindow(t *testing.T) {
	var h []Quote
	for i := int64(1); i <= 25; i++ {
		h = AppendBatch(h, batch(i, map[string]float64{"LATAM": 1, "GOL": 2, "AZUL": 3}, "LATAM", "GOL", "AZUL"))
	}
	require.Len(t, h, HistoryLimit)
	assert.Equal(t, int64(6), h[0].Timestamp)
	assert.Equal(t, int64(25), h[len(h)-1].Timestamp)
}

func TestAppendBatch_DoesNotAliasInput(t *testing.T) {
	h := make([]Quote, 1, 4)
	h[0] = Quote{Airline: "GOL", Timestamp: 1}
	out := AppendBatch(h, []Quote{{Airline: "AZUL", Timestamp: 2}})
	out[0].Airline = "X"
	assert.Equal(t, "GOL", h[0].Airline)
}

func TestLatestMatchingAndBest(t *testing.T) {
	ts := int64(2000)
	m := Monitor{TargetPrice: 500, LastChecked: &ts}
	m.History = AppendBatch(
		batch(1000, map[string]float64{"LATAM": 300}, "LATAM"),
		batch(ts, map[string]float64{"LATAM": 450, "GOL": 500, "AZUL": 610}, "LATAM", "GOL", "AZUL"),
	)

	latest := LatestPrices(m)
	require.Len(t, latest, 3)

	matching := MatchingDeals(m)
	require.Len(t, matching, 2)
	assert.Equal(t, "LATAM", matching[0].Airline)
	assert.Equal(t, "GOL", matching[1].Airline, "target is inclusive")
	assert.True(t, IsTargetMet(m))

	best, ok := BestOffer(m)
	require.True(t, ok)
	assert.Equal(t, 450.0, best.Price)
}

func TestNeverCheckedHasNoLatest(t *testing.T) {
	m := Monitor{TargetPrice: 1000, History: []Quote{{Airline: "GOL", Price: 1, Timestamp: 1}}}
	assert.Empty(t, LatestPrices(m))
	assert.False(t, IsTargetMet(m))
	_, ok := BestOffer(m)
	assert.False(t, ok)
}

func TestBestOffer_TieGoesToFirst(t *testing.T) {
	ts := int64(5)
	m := Monitor{LastChecked: &ts, History: batch(ts, map[string]float64{"GOL": 400, "AZUL": 400}, "GOL", "AZUL")}
	best, _ := BestOffer(m)
	assert.Equal(t, "GOL", best.Airline)
}

func TestBuildSeries(t *testing.T) {
	h := AppendBatch(
		batch(2, map[string]float64{"GOL": 520, "LATAM": 480}, "GOL", "LATAM"),
		batch(1, map[string]float64{"AZUL": 610}, "AZUL"),
	)
	s := BuildSeries(h)
	assert.Equal(t, []string{"GOL", "LATAM", "AZUL"}, s.Airlines)
	require.Len(t, s.Points, 2)
	assert.Equal(t, int64(1), s.Points[0].Timestamp)
	assert.Equal(t, map[string]float64{"GOL": 520, "LATAM": 480}, s.Points[1].Prices)

	empty := BuildSeries(nil)
	assert.NotNil(t, empty.Points)
	assert.NotNil(t, empty.Airlines)
}

func TestClone_CopiesHistoryAndLastChecked(t *testing.T) {
	ts := int64(9)
	m := Monitor{History: []Quote{{Airline: "GOL"}}, LastChecked: &ts}
	cp := m.Clone()
	cp.History[0].Airline = "AZUL"
	*cp.LastChecked = 10
	assert.Equal(t, "GOL", m.History[0].Airline)
	assert.Equal(t, int64(9), *m.LastChecked)
}
