// Package rates fetches historical exchange rates from a Frankfurter-compatible API.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"conti/internal/core"
	"conti/internal/ports"
)

// DefaultBaseURL is the public Frankfurter endpoint.
const DefaultBaseURL = "https://api.frankfurter.app"

var (
	ErrUnexpectedStatus = errors.New("unexpected status from rate API")
	ErrMalformedBody    = errors.New("malformed rate API response")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.RateFetcher = (*Client)(nil)

// NewClient returns a client for baseURL. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type historicalResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// FetchRates requests the rates of symbols against base for date.
// The returned snapshot is keyed by the requested date even when the provider
// answers with the closest earlier business day.
func (c *Client) FetchRates(ctx context.Context, date core.Date, base string, symbols []string) (core.ExchangeRateSnapshot, error) {
	q := url.Values{}
	q.Set("from", base)
	q.Set("to", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, date.String(), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("fetch rates for %s: %w", date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.ExchangeRateSnapshot{}, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var body historicalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if !strings.EqualFold(body.Base, base) {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("%w: base %q, want %q", ErrMalformedBody, body.Base, base)
	}
	if len(body.Rates) == 0 {
		return core.ExchangeRateSnapshot{}, fmt.Errorf("%w: no rates", ErrMalformedBody)
	}

	snap := core.ExchangeRateSnapshot{Date: date, Rates: make(map[string]float64, len(body.Rates))}
	for code, rate := range body.Rates {
		snap.Rates[core.NormalizeCurrency(code)] = rate
	}

	slog.DebugContext(ctx, "Fetched exchange rates",
		"requested_date", date.String(),
		"provider_date", body.Date,
		"currencies", len(snap.Rates),
		"duration_ms", time.Since(start).Milliseconds())

	return snap, nil
}
