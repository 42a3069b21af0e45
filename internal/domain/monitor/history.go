package monitor

// AppendBatch appends a refresh batch and keeps the newest HistoryLimit entries.
// The window is global to the monitor, not per airline.
func AppendBatch(history, batch []Quote) []Quote {
	out := make([]Quote, 0, len(history)+len(batch))
	out = append(out, history...)
	out = append(out, batch...)
	if len(out) > HistoryLimit {
		out = append([]Quote(nil), out[len(out)-HistoryLimit:]...)
	}
	return out
}

// LatestPrices returns the history entries of the most recent batch.
func LatestPrices(m Monitor) []Quote {
	if m.LastChecked == nil {
		return nil
	}
	var out []Quote
	for _, q := range m.History {
		if q.Timestamp == *m.LastChecked {
			out = append(out, q)
		}
	}
	return out
}

// MatchingQuotes keeps quotes at or below target, preserving their order.
func MatchingQuotes(quotes []Quote, target float64) []Quote {
	var out []Quote
	for _, q := range quotes {
		if q.Price <= target {
			out = append(out, q)
		}
	}
	return out
}

func MatchingDeals(m Monitor) []Quote {
	return MatchingQuotes(LatestPrices(m), m.TargetPrice)
}

func IsTargetMet(m Monitor) bool {
	return len(MatchingDeals(m)) > 0
}

// BestOffer is the cheapest latest quote; ties go to the first one seen.
func BestOffer(m Monitor) (Quote, bool) {
	latest := LatestPrices(m)
	if len(latest) == 0 {
		return Quote{}, false
	}
	best := latest[0]
	for _, q := range latest[1:] {
		if q.Price < best.Price {
			best = q
		}
	}
	return best, true
}
