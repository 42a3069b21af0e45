package monitor

import "errors"

// HistoryLimit is the size of the sliding window of quotes kept per monitor.
const HistoryLimit = 60

type TripType string

const (
	OneWay    TripType = "one-way"
	RoundTrip TripType = "round-trip"
)

type Currency string

const (
	CurrencyCash   Currency = "BRL"
	CurrencyPoints Currency = "POINTS"
)

var ErrInvalid = errors.New("invalid monitor")

// Quote is one airline's offer observed in one refresh batch.
type Quote struct {
	Airline      string   `json:"airline"`
	Price        float64  `json:"price"`
	Timestamp    int64    `json:"timestamp"`
	Currency     string   `json:"currency"`
	CurrencyType Currency `json:"currencyType"`
	IsNonStop    bool     `json:"isNonStop"`
	BookingURL   string   `json:"bookingUrl,omitempty"`
	Synthetic    bool     `json:"synthetic,omitempty"`
}

type Monitor struct {
	ID           string   `json:"id"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	Date         string   `json:"date"`
	ReturnDate   string   `json:"returnDate,omitempty"`
	TripType     TripType `json:"tripType"`
	CurrencyType Currency `json:"currencyType"`
	NonStopOnly  bool     `json:"nonStopOnly"`
	TargetPrice  float64  `json:"targetPrice"`
	IsActive     bool     `json:"isActive"`
	History      []Quote  `json:"history"`
	LastChecked  *int64   `json:"lastChecked"`

	// Updating is true while a refresh is in flight. Never persisted.
	Updating bool `json:"-"`
}

func (m Monitor) Clone() Monitor {
	cp := m
	cp.History = append([]Quote(nil), m.History...)
	if m.LastChecked != nil {
		ts := *m.LastChecked
		cp.LastChecked = &ts
	}
	return cp
}

func (m Monitor) IsRoundTrip() bool { return m.TripType == RoundTrip }
