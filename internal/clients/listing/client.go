// Package listing provides a generic JSON listing source.
//
// Upstream listing endpoints disagree on field names (code, symbol, ticker, 代码 ...) and on
// where the rows live in the document. The client takes candidate field names and a gjson
// path and accepts the first field that is present on each row.
package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// Default candidate field names, tried in order.
var (
	DefaultCodeFields = []string{"code", "Code", "symbol", "Symbol", "ticker", "代码", "证券代码"}
	DefaultNameFields = []string{"name", "Name", "shortName", "companyName", "名称", "证券简称"}
	DefaultTypeFields = []string{"type", "Type", "securityType"}
)

// ErrMalformedListing is returned when the response is not a JSON array of rows.
var ErrMalformedListing = errors.New("malformed listing response")

const sourceName = "listing"

// Client fetches a listing from one configured endpoint.
type Client struct {
	cfg        common.ListingConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *common.Logger
}

// NewClient creates a listing client for the given endpoint configuration.
func NewClient(cfg common.ListingConfig, logger *common.Logger) *Client {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1
	}
	if len(cfg.CodeFields) == 0 {
		cfg.CodeFields = DefaultCodeFields
	}
	if len(cfg.NameFields) == 0 {
		cfg.NameFields = DefaultNameFields
	}
	if len(cfg.TypeFields) == 0 {
		cfg.TypeFields = DefaultTypeFields
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.GetTimeout()},
		limiter:    rate.NewLimiter(rate.Limit(limit), limit),
		logger:     logger,
	}
}

// Name identifies this listing source
func (c *Client) Name() string {
	return sourceName
}

// ListTargets fetches the configured endpoint and extracts one Listing per row.
// Rows without a code are skipped. The market's exchanges are not consulted; the endpoint
// is expected to already be market-specific.
func (c *Client) ListTargets(ctx context.Context, market common.MarketConfig) ([]models.Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("client throttle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing endpoint returned status %d", resp.StatusCode)
	}

	listings, err := c.parse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("market", market.Name).
		Int("rows", len(listings)).
		Dur("elapsed", time.Since(start)).
		Msg("Secondary listing fetched")

	return listings, nil
}

func (c *Client) parse(body []byte) ([]models.Listing, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedListing
	}

	rows := gjson.ParseBytes(body)
	if c.cfg.ItemsPath != "" {
		rows = rows.Get(c.cfg.ItemsPath)
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("%w: %q is not an array", ErrMalformedListing, c.cfg.ItemsPath)
	}

	var listings []models.Listing
	rows.ForEach(func(_, row gjson.Result) bool {
		code := firstField(row, c.cfg.CodeFields)
		if code == "" {
			return true
		}
		listings = append(listings, models.Listing{
			Code: code,
			Name: firstField(row, c.cfg.NameFields),
			Type: firstField(row, c.cfg.TypeFields),
		})
		return true
	})
	return listings, nil
}

// firstField returns the first non-empty value among the candidate field names.
func firstField(row gjson.Result, fields []string) string {
	for _, f := range fields {
		v := row.Get(gjson.Escape(f))
		if !v.Exists() {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

var _ interfaces.ListingSource = (*Client)(nil)
