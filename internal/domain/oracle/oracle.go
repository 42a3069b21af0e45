package oracle

import (
	"context"
	"strings"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
)

const (
	CarrierLATAM = "LATAM"
	CarrierGOL   = "GOL"
	CarrierAZUL  = "AZUL"
)

var KnownCarriers = []string{CarrierLATAM, CarrierGOL, CarrierAZUL}

// Query is the snapshot of a monitor handed to the price oracle.
type Query struct {
	Origin       string
	Destination  string
	Date         string
	ReturnDate   string
	TripType     monitor.TripType
	NonStopOnly  bool
	CurrencyType monitor.Currency
	Timestamp    int64
}

func QueryFor(m monitor.Monitor, ts int64) Query {
	q := Query{
		Origin:       m.Origin,
		Destination:  m.Destination,
		Date:         m.Date,
		TripType:     m.TripType,
		NonStopOnly:  m.NonStopOnly,
		CurrencyType: m.CurrencyType,
		Timestamp:    ts,
	}
	if m.IsRoundTrip() {
		q.ReturnDate = m.ReturnDate
	}
	return q
}

type Oracle interface {
	FetchQuotes(ctx context.Context, q Query) ([]monitor.Quote, error)
}

func NormalizeAirline(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func IsKnownCarrier(airline string) bool {
	for _, c := range KnownCarriers {
		if c == airline {
			return true
		}
	}
	return false
}
