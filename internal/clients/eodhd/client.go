// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	sourceName = "eodhd"
)

// Client implements ListingSource and HistoryFetcher against EODHD
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock overrides the clock used to compute history windows
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// errDecode marks a response body that could not be parsed.
var errDecode = errors.New("failed to decode response")

// errThrottled marks a request refused by the client's own limiter before reaching EODHD.
var errThrottled = errors.New("client throttle")

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", errThrottled, err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}

	return nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// FetchHistory retrieves daily bars for symbol covering the lookback window, oldest first.
// Errors are returned as *models.FetchError.
func (c *Client) FetchHistory(ctx context.Context, symbol string, lookback time.Duration) ([]models.Bar, error) {
	to := c.now()
	from := to.Add(-lookback)

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var rows []eodBarResponse
	if err := c.get(ctx, "/eod/"+url.PathEscape(symbol), params, &rows); err != nil {
		return nil, Classify(symbol, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			c.logger.Debug().Str("symbol", symbol).Str("date", row.Date).Msg("Skipping bar with unparseable date")
			continue
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   float64(row.Open),
			High:   float64(row.High),
			Low:    float64(row.Low),
			Close:  float64(row.Close),
			Volume: int64(row.Volume),
		})
	}
	slices.SortFunc(bars, func(a, b models.Bar) int { return a.Date.Compare(b.Date) })

	return bars, nil
}

// symbolResponse is one row of the exchange symbol list
type symbolResponse struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Country  string `json:"Country"`
	Exchange string `json:"Exchange"`
	Currency string `json:"Currency"`
	Type     string `json:"Type"`
	Isin     string `json:"Isin"`
}

// Name identifies this listing source
func (c *Client) Name() string {
	return sourceName
}

// ListTargets retrieves the symbol list for every exchange of the market.
// Any exchange failing fails the whole listing so a partial universe is never returned.
func (c *Client) ListTargets(ctx context.Context, market common.MarketConfig) ([]models.Listing, error) {
	var listings []models.Listing
	for _, exchange := range market.Exchanges {
		rows, err := c.GetExchangeSymbols(ctx, exchange)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", exchange, err)
		}
		for _, row := range rows {
			venue := row.Exchange
			if venue == "" {
				venue = exchange
			}
			listings = append(listings, models.Listing{
				Code:  row.Code,
				Name:  row.Name,
				Venue: venue,
				Type:  row.Type,
			})
		}
		c.logger.Debug().Str("exchange", exchange).Int("rows", len(rows)).Msg("EODHD exchange listing")
	}
	return listings, nil
}

// GetExchangeSymbols retrieves all symbols for an exchange
func (c *Client) GetExchangeSymbols(ctx context.Context, exchange string) ([]symbolResponse, error) {
	path := fmt.Sprintf("/exchange-symbol-list/%s", url.PathEscape(exchange))

	var symbols []symbolResponse
	if err := c.get(ctx, path, nil, &symbols); err != nil {
		return nil, err
	}

	return symbols, nil
}

// Classify converts a request error into a *models.FetchError.
// Structured HTTP status wins; the error text is only consulted when no status is available.
func Classify(symbol string, err error) *models.FetchError {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return fe
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return models.NewFetchError(models.FetchRateLimited, symbol, apiErr.StatusCode, err)
		case apiErr.StatusCode == http.StatusNotFound:
			return models.NewFetchError(models.FetchEmpty, symbol, apiErr.StatusCode, err)
		case apiErr.StatusCode >= 500:
			return models.NewFetchError(models.FetchTransient, symbol, apiErr.StatusCode, err)
		case models.IsRateLimitMessage(apiErr.Message):
			return models.NewFetchError(models.FetchRateLimited, symbol, apiErr.StatusCode, err)
		default:
			return models.NewFetchError(models.FetchPermanent, symbol, apiErr.StatusCode, err)
		}
	}

	switch {
	case errors.Is(err, errThrottled):
		// never sent, so not a provider signal
		return models.NewFetchError(models.FetchTransient, symbol, 0, err)
	case errors.Is(err, errDecode):
		return models.NewFetchError(models.FetchPermanent, symbol, 0, err)
	case models.IsRateLimitMessage(err.Error()):
		return models.NewFetchError(models.FetchRateLimited, symbol, 0, err)
	default:
		// network failures, per-attempt deadlines
		return models.NewFetchError(models.FetchTransient, symbol, 0, err)
	}
}

// Ensure Client implements the pipeline contracts
var (
	_ interfaces.ListingSource  = (*Client)(nil)
	_ interfaces.HistoryFetcher = (*Client)(nil)
)
