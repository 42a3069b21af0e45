package gemini

import (
	"fmt"
	"strings"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
)

func buildPrompt(q oracle.Query) string {
	trip := fmt.Sprintf("one-way flights departing on %s", q.Date)
	if q.TripType == monitor.RoundTrip {
		trip = fmt.Sprintf("round-trip flights departing on %s and returning on %s", q.Date, q.ReturnDate)
	}
	stops := "flights with or without stops (connections)"
	if q.NonStopOnly {
		stops = "STRICTLY direct (non-stop) flights only"
	}
	unit := "BRL (cash)"
	if q.CurrencyType == monitor.CurrencyPoints {
		unit = "Miles/Points (Smiles for GOL, LATAM Pass for LATAM, TudoAzul for Azul)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Find the current real-time ticket prices for %s from %s to %s.\n", trip, q.Origin, q.Destination)
	fmt.Fprintf(&b, "Search Mode: %s.\n", stops)
	fmt.Fprintf(&b, "Search specifically for the lowest prices from these airlines: %s.\n\n", strings.Join(oracle.KnownCarriers, ", "))
	fmt.Fprintf(&b, "VERY IMPORTANT: The user wants the price in %s.\n", unit)
	b.WriteString("If searching for Miles/Points:\n")
	b.WriteString("- For GOL, search on Smiles.\n")
	b.WriteString("- For LATAM, search on LATAM Pass.\n")
	b.WriteString("- For Azul, search on TudoAzul.\n\n")
	b.WriteString("Provide the numerical value of the lowest fare found for each airline.\n")
	b.WriteString("For each flight found, you MUST determine if it is a non-stop flight (direct) or has stops/connections.\n")
	b.WriteString("Provide the official URL where the user can see these results.")
	return b.String()
}

type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Items       *schema           `json:"items,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

func responseSchema(c monitor.Currency) schema {
	return schema{
		Type: "ARRAY",
		Items: &schema{
			Type: "OBJECT",
			Properties: map[string]schema{
				"airline":    {Type: "STRING", Description: "Must be LATAM, GOL, or AZUL"},
				"price":      {Type: "NUMBER", Description: "Numerical value in " + string(c)},
				"currency":   {Type: "STRING", Description: string(c)},
				"isNonStop":  {Type: "BOOLEAN", Description: "True if flight is direct/non-stop, false if it has stops/connections"},
				"bookingUrl": {Type: "STRING", Description: "Official link to the search results page"},
			},
			Required: []string{"airline", "price", "currency", "isNonStop", "bookingUrl"},
		},
	}
}
