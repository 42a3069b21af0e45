package monitor

import "sort"

type SeriesPoint struct {
	Timestamp int64              `json:"timestamp"`
	Prices    map[string]float64 `json:"prices"`
}

// Series is the price history laid out for charting: one point per batch,
// one line per airline.
type Series struct {
	Airlines []string      `json:"airlines"`
	Points   []SeriesPoint `json:"points"`
}

func BuildSeries(history []Quote) Series {
	s := Series{Airlines: []string{}, Points: []SeriesPoint{}}
	byTS := make(map[int64]map[string]float64)
	seen := make(map[string]bool)
	for _, q := range history {
		prices, ok := byTS[q.Timestamp]
		if !ok {
			prices = make(map[string]float64)
			byTS[q.Timestamp] = prices
		}
		prices[q.Airline] = q.Price
		if !seen[q.Airline] {
			seen[q.Airline] = true
			s.Airlines = append(s.Airlines, q.Airline)
		}
	}
	for ts, prices := range byTS {
		s.Points = append(s.Points, SeriesPoint{Timestamp: ts, Prices: prices})
	}
	sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Timestamp < s.Points[j].Timestamp })
	return s
}
