// Package booking builds carrier deep links for a monitor's route.
package booking

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
)

// Resolve returns the oracle's booking link when it looks like a URL and a
// generated search link otherwise.
func Resolve(m monitor.Monitor, q monitor.Quote) string {
	if q.BookingURL != "" && strings.Contains(q.BookingURL, "http") {
		return q.BookingURL
	}
	return SearchURL(m, q.Airline)
}

func SearchURL(m monitor.Monitor, airline string) string {
	points := m.CurrencyType == monitor.CurrencyPoints
	ret := ""
	if m.IsRoundTrip() {
		ret = m.ReturnDate
	}

	switch strings.ToUpper(airline) {
	case oracle.CarrierLATAM:
		u := fmt.Sprintf("https://www.latamairlines.com/br/pt/ofertas-voos?origin=%s&destination=%s&departure=%s",
			m.Origin, m.Destination, m.Date)
		if ret != "" {
			u += "&return=" + ret
		}
		return u + fmt.Sprintf("&adults=1&cabin=economy&redemption=%t", points)
	case oracle.CarrierGOL:
		if points {
			tripType := "1"
			if m.IsRoundTrip() {
				tripType = "2"
			}
			return fmt.Sprintf("https://www.smiles.com.br/emissao-com-milhas?originCode=%s&destinationCode=%s&departureDate=%d&adults=1&tripType=%s",
				m.Origin, m.Destination, dateMillis(m.Date), tripType)
		}
		u := fmt.Sprintf("https://b2c.voegol.com.br/compra/busca-parceiro?origem=%s&destino=%s&dataIda=%s",
			m.Origin, m.Destination, strings.ReplaceAll(m.Date, "-", ""))
		if ret != "" {
			u += "&dataVolta=" + strings.ReplaceAll(ret, "-", "")
		}
		return u + "&ADULTOS=1"
	case oracle.CarrierAZUL:
		u := fmt.Sprintf("https://www.voeazul.com.br/br/pt/home/selecao-voo?origem=%s&destino=%s&dataIda=%s",
			m.Origin, m.Destination, m.Date)
		if ret != "" {
			u += "&dataVolta=" + ret
		}
		u += "&adultos=1"
		if points {
			u += "&isPoints=true"
		}
		return u
	default:
		return "https://www.google.com/search?q=" + url.QueryEscape(
			strings.Join([]string{"passagens", airline, m.Origin, "para", m.Destination}, " "))
	}
}

// dateMillis is midnight UTC of a YYYY-MM-DD date in epoch millis, 0 if unparsable.
func dateMillis(date string) int64 {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
