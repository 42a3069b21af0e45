package api

import (
	"time"

	"github.com/NordCoder/Farewatch/internal/booking"
	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/format"
)

type QuoteView struct {
	monitor.Quote
	PriceLabel  string `json:"priceLabel"`
	BookingLink string `json:"bookingLink"`
	MeetsTarget bool   `json:"meetsTarget"`
}

// CardView is everything a monitor card renders.
type CardView struct {
	Monitor           monitor.Monitor `json:"monitor"`
	Updating          bool            `json:"updating"`
	Route             string          `json:"route"`
	DisplayDate       string          `json:"displayDate"`
	DisplayReturnDate string          `json:"displayReturnDate,omitempty"`
	TargetLabel       string          `json:"targetLabel"`
	LastCheckedLabel  string          `json:"lastCheckedLabel"`
	Latest            []QuoteView     `json:"latest"`
	Matching          []QuoteView     `json:"matching"`
	Best              *QuoteView      `json:"best,omitempty"`
	BestLabel         string          `json:"bestLabel,omitempty"`
	IsTargetMet       bool            `json:"isTargetMet"`
}

func quoteView(m monitor.Monitor, q monitor.Quote) QuoteView {
	return QuoteView{
		Quote:       q,
		PriceLabel:  format.Price(q.Price, m.CurrencyType),
		BookingLink: booking.Resolve(m, q),
		MeetsTarget: q.Price <= m.TargetPrice,
	}
}

func quoteViews(m monitor.Monitor, qs []monitor.Quote) []QuoteView {
	out := make([]QuoteView, 0, len(qs))
	for _, q := range qs {
		out = append(out, quoteView(m, q))
	}
	return out
}

func Card(m monitor.Monitor, now time.Time) CardView {
	c := CardView{
		Monitor:          m,
		Updating:         m.Updating,
		Route:            m.Origin + " → " + m.Destination,
		DisplayDate:      format.DisplayDate(m.Date),
		TargetLabel:      format.Price(m.TargetPrice, m.CurrencyType),
		LastCheckedLabel: format.Since(m.LastChecked, now),
		Latest:           quoteViews(m, monitor.LatestPrices(m)),
		Matching:         quoteViews(m, monitor.MatchingDeals(m)),
		IsTargetMet:      monitor.IsTargetMet(m),
	}
	if m.IsRoundTrip() {
		c.DisplayReturnDate = format.DisplayDate(m.ReturnDate)
	}
	if best, ok := monitor.BestOffer(m); ok {
		v := quoteView(m, best)
		c.Best = &v
		c.BestLabel = v.PriceLabel
	}
	return c
}

type HistoryView struct {
	MonitorID    string           `json:"monitorId"`
	CurrencyType monitor.Currency `json:"currencyType"`
	Unit         string           `json:"unit"`
	TargetPrice  float64          `json:"targetPrice"`
	TargetLabel  string           `json:"targetLabel"`
	monitor.Series
}

func History(m monitor.Monitor) HistoryView {
	return HistoryView{
		MonitorID:    m.ID,
		CurrencyType: m.CurrencyType,
		Unit:         format.Unit(m.CurrencyType),
		TargetPrice:  m.TargetPrice,
		TargetLabel:  format.Axis(m.TargetPrice, m.CurrencyType),
		Series:       monitor.BuildSeries(m.History),
	}
}
