package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/obs/retry"
)

const DefaultBaseURL = "https://serpapi.com"

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

var _ oracle.Oracle = (*Client)(nil)

// Client queries the Google Flights engine of SerpAPI. It only quotes cash fares.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: obs.HTTPClient(cfg.Timeout),
		log:  obs.Component(log, "oracle.serpapi"),
	}
}

type serpResponse struct {
	BestFlights  []serpFlight `json:"best_flights"`
	OtherFlights []serpFlight `json:"other_flights"`
	SearchMeta   struct {
		GoogleFlightsURL string `json:"google_flights_url"`
	} `json:"search_metadata"`
}

type serpFlight struct {
	Price   float64 `json:"price"`
	Flights []struct {
		Airline string `json:"airline"`
	} `json:"flights"`
	Layovers []any `json:"layovers"`
}

func (c *Client) FetchQuotes(ctx context.Context, q oracle.Query) ([]monitor.Quote, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: serpapi key missing: set oracle.api_key", oracle.ErrAuthRequired)
	}
	if q.CurrencyType == monitor.CurrencyPoints {
		return nil, fmt.Errorf("%w: serpapi has no loyalty-programme fares", oracle.ErrUnsupported)
	}
	ctx, span := otel.Tracer("oracle.serpapi").Start(ctx, "serpapi.search")
	defer span.End()
	span.SetAttributes(attribute.String("route", q.Origin+"-"+q.Destination))

	endpoint := buildSearchURL(c.cfg.BaseURL, q, c.cfg.APIKey)
	var payload serpResponse
	policy := retry.OraclePolicy(obs.WithTrace(ctx, c.log), c.cfg.Retries, c.cfg.Backoff, oracle.Retryable)
	if err := retry.Do(ctx, func(ctx context.Context) error {
		payload = serpResponse{}
		return c.fetchOnce(ctx, endpoint, &payload)
	}, policy); err != nil {
		span.RecordError(err)
		return nil, err
	}

	link := payload.SearchMeta.GoogleFlightsURL
	if link == "" {
		link = GoogleFlightsURL(q)
	}
	return cheapestPerCarrier(append(payload.BestFlights, payload.OtherFlights...), q, link), nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string, out *serpResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return oracle.TransportError("serpapi", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return oracle.StatusError("serpapi", resp.StatusCode, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode serpapi response: %v", oracle.ErrBadResponse, err)
	}
	return nil
}

// cheapestPerCarrier keeps one quote per known carrier, in carrier order.
func cheapestPerCarrier(flights []serpFlight, q oracle.Query, link string) []monitor.Quote {
	best := map[string]monitor.Quote{}
	for _, f := range flights {
		if len(f.Flights) == 0 || f.Price <= 0 {
			continue
		}
		carrier := carrierOf(f.Flights[0].Airline)
		if carrier == "" {
			continue
		}
		cur, ok := best[carrier]
		if ok && cur.Price <= f.Price {
			continue
		}
		best[carrier] = monitor.Quote{
			Airline:      carrier,
			Price:        f.Price,
			Timestamp:    q.Timestamp,
			Currency:     string(monitor.CurrencyCash),
			CurrencyType: q.CurrencyType,
			IsNonStop:    len(f.Layovers) == 0,
			BookingURL:   link,
		}
	}
	out := make([]monitor.Quote, 0, len(best))
	for _, c := range oracle.KnownCarriers {
		if quote, ok := best[c]; ok {
			out = append(out, quote)
		}
	}
	return out
}

func carrierOf(airline string) string {
	n := oracle.NormalizeAirline(airline)
	for _, c := range oracle.KnownCarriers {
		if strings.HasPrefix(n, c) {
			return c
		}
	}
	return ""
}

func buildSearchURL(baseURL string, q oracle.Query, apiKey string) string {
	v := url.Values{}
	v.Set("engine", "google_flights")
	v.Set("api_key", apiKey)
	v.Set("departure_id", q.Origin)
	v.Set("arrival_id", q.Destination)
	v.Set("outbound_date", q.Date)
	if q.TripType == monitor.RoundTrip && q.ReturnDate != "" {
		v.Set("type", "1")
		v.Set("return_date", q.ReturnDate)
	} else {
		v.Set("type", "2")
	}
	v.Set("adults", "1")
	if q.NonStopOnly {
		v.Set("stops", "1")
	}
	v.Set("currency", string(monitor.CurrencyCash))
	v.Set("hl", "pt-BR")
	return strings.TrimRight(baseURL, "/") + "/search.json?" + v.Encode()
}

func GoogleFlightsURL(q oracle.Query) string {
	values := url.Values{}
	values.Set("f", q.Origin)
	values.Set("t", q.Destination)
	values.Set("d", q.Date)
	if q.TripType == monitor.RoundTrip && q.ReturnDate != "" {
		values.Set("r", q.ReturnDate)
	}
	if q.NonStopOnly {
		values.Set("sc", "1")
	}
	return "https://www.google.com/travel/flights?" + values.Encode()
}
