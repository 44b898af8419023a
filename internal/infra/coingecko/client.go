// Package coingecko implements domain.AssetFetcher against the CoinGecko v3
// REST API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	opMarkets = "markets"
	opPrices  = "prices"
	opSearch  = "search"
	opChart   = "market_chart"
)

// Config holds the client settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	PerPage           int // list size for the dashboard and price polling
	SearchPageSize    int // market page scanned by SearchAssets
	SearchLimit       int
	RequestsPerSecond float64
	Burst             int
	APIKey            string // optional demo key
	UserAgent         string
}

// Client is a CoinGecko market-data fetcher.
type Client struct {
	client  *fasthttp.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

var _ domain.AssetFetcher = (*Client)(nil)

// NewClient creates a client. Zero-valued limits fall back to the
// dashboard defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	if cfg.SearchPageSize <= 0 {
		cfg.SearchPageSize = 100
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		client:  &fasthttp.Client{Name: cfg.UserAgent},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.Named("CoinGeckoClient"),
		now:     time.Now,
	}
}

// FetchAssets returns the top assets by market cap.
func (c *Client) FetchAssets(ctx context.Context) ([]domain.Asset, error) {
	coins, err := c.markets(ctx, opMarkets, c.cfg.PerPage, true)
	if err != nil {
		return nil, err
	}
	now := c.now()
	assets := make([]domain.Asset, 0, len(coins))
	for _, coin := range coins {
		assets = append(assets, coin.toAsset(now))
	}
	return assets, nil
}

// FetchPriceUpdates returns price-only partials for the same page.
func (c *Client) FetchPriceUpdates(ctx context.Context) ([]domain.PriceUpdate, error) {
	coins, err := c.markets(ctx, opPrices, c.cfg.PerPage, true)
	if err != nil {
		return nil, err
	}
	now := c.now()
	updates := make([]domain.PriceUpdate, 0, len(coins))
	for _, coin := range coins {
		updates = append(updates, coin.toPriceUpdate(now))
	}
	return updates, nil
}

// SearchAssets filters a wide market page by name or symbol and returns at
// most SearchLimit matches.
func (c *Client) SearchAssets(ctx context.Context, query string) ([]domain.Asset, error) {
	coins, err := c.markets(ctx, opSearch, c.cfg.SearchPageSize, false)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	now := c.now()
	results := make([]domain.Asset, 0, c.cfg.SearchLimit)
	for _, coin := range coins {
		if len(results) == c.cfg.SearchLimit {
			break
		}
		if coin.matches(q) {
			results = append(results, coin.toAsset(now))
		}
	}
	return results, nil
}

// FetchChart returns the USD price history of assetID over days.
// An unknown id yields an *domain.APIError wrapping domain.ErrUnknownAsset.
func (c *Client) FetchChart(ctx context.Context, assetID string, days int) (domain.ChartSeries, error) {
	if assetID == "" {
		return domain.ChartSeries{}, fmt.Errorf("%s: %w", opChart, domain.ErrUnknownAsset)
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	requestURL := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.cfg.BaseURL, url.PathEscape(assetID), q.Encode())

	var chart marketChart
	if err := c.getJSON(ctx, opChart, requestURL, &chart); err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusNotFound {
			apiErr.Err = domain.ErrUnknownAsset
		}
		return domain.ChartSeries{}, err
	}
	return chart.toSeries(), nil
}

func (c *Client) markets(ctx context.Context, op string, perPage int, withChange bool) ([]marketCoin, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	if withChange {
		q.Set("price_change_percentage", "24h")
	}
	requestURL := c.cfg.BaseURL + "/coins/markets?" + q.Encode()

	var coins []marketCoin
	if err := c.getJSON(ctx, op, requestURL, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// getJSON performs a rate-limited GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, op, requestURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.NewFatalNetworkError(op, err)
	}

	c.logger.Debug("Requesting CoinGecko", zap.String("op", op), zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.cfg.APIKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > c.cfg.Timeout {
		deadline = time.Now().Add(c.cfg.Timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("CoinGecko request failed", zap.String("op", op), zap.Error(err))
		if ctx.Err() != nil {
			return domain.NewFatalNetworkError(op, ctx.Err())
		}
		return domain.NewNetworkError(op, err)
	}

	rawBody := resp.Body()
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		var body apiErrorBody
		msg := fasthttp.StatusMessage(status)
		if err := json.Unmarshal(rawBody, &body); err == nil && body.message() != "" {
			msg = body.message()
		}
		c.logger.Warn("CoinGecko API error",
			zap.String("op", op),
			zap.Int("statusCode", status),
			zap.ByteString("responseBody", rawBody),
		)
		return &domain.APIError{Status: status, Message: msg}
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		c.logger.Error("Failed to decode CoinGecko response",
			zap.String("op", op),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w: %v", op, domain.ErrMalformedPayload, err)
	}
	return nil
}
