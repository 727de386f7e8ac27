package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	"drreport/internal/service/ratelimit"
	xhttp "drreport/pkg/http"
	applogger "drreport/pkg/logger"
)

// Client fetches daily OHLCV history from the market-data provider's REST
// endpoint. It only ever speaks provider symbols; canonical IDs never reach
// this layer.
type Client struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	maxRPS  float64
	l       *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithMaxRPS caps outbound request rate against the provider.
func WithMaxRPS(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.maxRPS = rps
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.l = l
	}
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		limiter: ratelimit.New(),
		maxRPS:  5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type dailyResponse struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"candles"`
}

// FetchDaily returns up to days of daily candles for providerSymbol, oldest
// first. A symbol the provider knows but has no rows for maps to ErrNoData.
func (c *Client) FetchDaily(ctx context.Context, providerSymbol string, days int) ([]models.RawPricePoint, error) {
	if providerSymbol == "" {
		return nil, fmt.Errorf("provider symbol is empty")
	}
	if days <= 0 {
		days = 1
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	if !c.limiter.Wait("provider", c.maxRPS, c.maxRPS, deadline) {
		return nil, fmt.Errorf("rate limit wait exceeded for %s", providerSymbol)
	}

	start := time.Now()
	var resp dailyResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v1/daily",
		Headers: map[string]string{
			"X-API-Key": c.apiKey,
		},
		QueryParams: map[string][]string{
			"symbol": {providerSymbol},
			"days":   {strconv.Itoa(days)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch daily %s: %w", providerSymbol, err)
	}

	if len(resp.Candles) == 0 {
		return nil, fmt.Errorf("%s: %w", providerSymbol, models.ErrNoData)
	}

	points := make([]models.RawPricePoint, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		if cd.Date == "" {
			continue
		}
		points = append(points, models.RawPricePoint{
			ProviderSymbol: providerSymbol,
			TradingDate:    cd.Date,
			Open:           cd.Open,
			High:           cd.High,
			Low:            cd.Low,
			Close:          cd.Close,
			Volume:         cd.Volume,
		})
	}

	// The date filter above can empty the slice even when the response
	// carried candles.
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", providerSymbol, models.ErrNoData)
	}

	if c.l != nil {
		c.l.Info("provider fetch ok",
			applogger.String("symbol", providerSymbol),
			applogger.Int("rows", len(points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return points, nil
}

var _ domrepo.PriceProvider = (*Client)(nil)
