package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
	"github.com/NordCoder/Farewatch/internal/domain/oracle"
	"github.com/NordCoder/Farewatch/internal/obs"
	"github.com/NordCoder/Farewatch/internal/obs/retry"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-3-flash-preview"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

var _ oracle.Oracle = (*Client)(nil)

// Client asks a Gemini model, grounded with Google Search, for the cheapest
// fare per carrier.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: obs.HTTPClient(cfg.Timeout),
		log:  obs.Component(log, "oracle.gemini"),
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	cp := *c
	cp.http = h
	return &cp
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	Tools            []map[string]any `json:"tools"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type rawQuote struct {
	Airline    string  `json:"airline"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	IsNonStop  bool    `json:"isNonStop"`
	BookingURL string  `json:"bookingUrl"`
}

func (c *Client) FetchQuotes(ctx context.Context, q oracle.Query) ([]monitor.Quote, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key missing: set API_KEY or oracle.api_key", oracle.ErrAuthRequired)
	}
	ctx, span := otel.Tracer("oracle.gemini").Start(ctx, "gemini.generateContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("route", q.Origin+"-"+q.Destination),
		attribute.String("currency", string(q.CurrencyType)),
	)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: buildPrompt(q)}}}},
		Tools:    []map[string]any{{"google_search": map[string]any{}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(q.CurrencyType),
		},
	})
	if err != nil {
		return nil, err
	}

	var text string
	policy := retry.OraclePolicy(obs.WithTrace(ctx, c.log), c.cfg.Retries, c.cfg.Backoff, oracle.Retryable)
	err = retry.Do(ctx, func(ctx context.Context) error {
		t, err := c.generate(ctx, body)
		if err != nil {
			return err
		}
		text = t
		return nil
	}, policy)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	quotes, err := parseQuotes(text, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("quotes", len(quotes)))
	return quotes, nil
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/v1beta/models/" + url.PathEscape(c.cfg.Model) + ":generateContent"
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", oracle.TransportError("gemini", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", oracle.TransportError("gemini", err)
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw[:min(len(raw), 2048)]))
		}
		return "", oracle.StatusError("gemini", resp.StatusCode, resp.Status, msg)
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%w: gemini body is not JSON", oracle.ErrBadResponse)
	}
	if reason := gjson.GetBytes(raw, "promptFeedback.blockReason"); reason.Exists() {
		return "", fmt.Errorf("%w: prompt blocked: %s", oracle.ErrBadResponse, reason.String())
	}
	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "[]", nil
	}
	return text.String(), nil
}

// parseQuotes reads the model's JSON array, tolerating a markdown code fence.
func parseQuotes(text string, q oracle.Query) ([]monitor.Quote, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		text = "[]"
	}

	var items []rawQuote
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("%w: decode quotes: %v", oracle.ErrBadResponse, err)
	}
	out := make([]monitor.Quote, 0, len(items))
	for _, it := range items {
		airline := oracle.NormalizeAirline(it.Airline)
		if airline == "" || it.Price < 0 {
			continue
		}
		currency := it.Currency
		if currency == "" {
			currency = string(q.CurrencyType)
		}
		out = append(out, monitor.Quote{
			Airline:      airline,
			Price:        it.Price,
			Timestamp:    q.Timestamp,
			Currency:     currency,
			CurrencyType: q.CurrencyType,
			IsNonStop:    it.IsNonStop,
			BookingURL:   it.BookingURL,
		})
	}
	return out, nil
}
