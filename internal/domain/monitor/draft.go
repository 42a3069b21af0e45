package monitor

import (
	"fmt"
	"strings"
	"time"
)

// Draft is the create/edit form. ReturnDate survives trip type switches and is
// only dropped when the draft is applied as a one-way monitor.
type Draft struct {
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	Date         string   `json:"date"`
	ReturnDate   string   `json:"returnDate,omitempty"`
	TripType     TripType `json:"tripType"`
	CurrencyType Currency `json:"currencyType"`
	NonStopOnly  bool     `json:"nonStopOnly"`
	TargetPrice  *float64 `json:"targetPrice"`
}

// NewDraft is the blank form for a new monitor. Non-stop flights are asked
// for unless the user opts out.
func NewDraft() Draft {
	return Draft{TripType: OneWay, CurrencyType: CurrencyCash, NonStopOnly: true}
}

func DraftFrom(m Monitor) Draft {
	target := m.TargetPrice
	return Draft{
		Origin:       m.Origin,
		Destination:  m.Destination,
		Date:         m.Date,
		ReturnDate:   m.ReturnDate,
		TripType:     m.TripType,
		CurrencyType: m.CurrencyType,
		NonStopOnly:  m.NonStopOnly,
		TargetPrice:  &target,
	}
}

func (d *Draft) SetTripType(t TripType) { d.TripType = t }

func (d Draft) ShowsReturnDate() bool { return d.TripType == RoundTrip }

func (d Draft) Normalize() Draft {
	d.Origin = strings.ToUpper(strings.TrimSpace(d.Origin))
	d.Destination = strings.ToUpper(strings.TrimSpace(d.Destination))
	d.Date = strings.TrimSpace(d.Date)
	d.ReturnDate = strings.TrimSpace(d.ReturnDate)
	if d.TripType == "" {
		d.TripType = OneWay
	}
	if d.CurrencyType == "" {
		d.CurrencyType = CurrencyCash
	}
	return d
}

func (d Draft) Validate() error {
	d = d.Normalize()
	if !isAirportCode(d.Origin) {
		return fmt.Errorf("%w: origin must be a 3-letter airport code", ErrInvalid)
	}
	if !isAirportCode(d.Destination) {
		return fmt.Errorf("%w: destination must be a 3-letter airport code", ErrInvalid)
	}
	if _, err := time.Parse(time.DateOnly, d.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	switch d.TripType {
	case OneWay:
	case RoundTrip:
		if _, err := time.Parse(time.DateOnly, d.ReturnDate); err != nil {
			return fmt.Errorf("%w: round-trip requires returnDate as YYYY-MM-DD", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown trip type %q", ErrInvalid, d.TripType)
	}
	switch d.CurrencyType {
	case CurrencyCash, CurrencyPoints:
	default:
		return fmt.Errorf("%w: unknown currency type %q", ErrInvalid, d.CurrencyType)
	}
	if d.TargetPrice == nil {
		return fmt.Errorf("%w: targetPrice is required", ErrInvalid)
	}
	if *d.TargetPrice < 0 {
		return fmt.Errorf("%w: targetPrice must not be negative", ErrInvalid)
	}
	return nil
}

// Apply copies the route, schedule and target fields onto m. Identity,
// history, activity and lastChecked are left untouched.
func (d Draft) Apply(m *Monitor) {
	d = d.Normalize()
	m.Origin = d.Origin
	m.Destination = d.Destination
	m.Date = d.Date
	m.TripType = d.TripType
	m.ReturnDate = ""
	if d.TripType == RoundTrip {
		m.ReturnDate = d.ReturnDate
	}
	m.CurrencyType = d.CurrencyType
	m.NonStopOnly = d.NonStopOnly
	if d.TargetPrice != nil {
		m.TargetPrice = *d.TargetPrice
	}
}

func isAirportCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
