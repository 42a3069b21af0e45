package format

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
)

const (
	brlFormat    = "#.###,##"
	wholeFormat  = "#.###,"
	neverChecked = "never checked"
)

// Price formats a value in the monitor's unit with pt-BR separators:
// "R$ 1.234,56" for cash and "15.000 pts" for points.
func Price(v float64, c monitor.Currency) string {
	if c == monitor.CurrencyPoints {
		return humanize.FormatFloat(wholeFormat, round(v, 0)) + " pts"
	}
	return "R$ " + humanize.FormatFloat(brlFormat, round(v, 2))
}

// Axis is the compact label used on chart axes.
func Axis(v float64, c monitor.Currency) string {
	if c == monitor.CurrencyPoints {
		return Price(v, c)
	}
	return "R$ " + humanize.FormatFloat(wholeFormat, round(v, 0))
}

func Unit(c monitor.Currency) string {
	if c == monitor.CurrencyPoints {
		return "pts"
	}
	return "R$"
}

func Since(lastChecked *int64, now time.Time) string {
	if lastChecked == nil {
		return neverChecked
	}
	then := time.UnixMilli(*lastChecked)
	if now.Sub(then) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(then, now, "ago", "from now")
}

// DisplayDate turns 2025-03-01 into 01/03/2025.
func DisplayDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
