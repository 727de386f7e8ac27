package report

import (
	"context"
	"fmt"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	xhttp "drreport/pkg/http"
)

// Client calls the report-generation service over HTTP. The service wraps the
// LLM and PDF machinery; from here it is an opaque, possibly slow collaborator
// that either returns a payload or fails.
type Client struct {
	baseURL string
	model   string
	client  *xhttp.Client
	retries int
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-call HTTP timeout. Generation is LLM-backed and
// multi-second calls are normal.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithModel selects the generation model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithRetries sets retry attempts for transient errors.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// NewClient creates a report generation client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(60 * time.Second)),
		retries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Ticker       string                 `json:"ticker"`
	BusinessDate string                 `json:"business_date"`
	Model        string                 `json:"model,omitempty"`
	Candles      []models.RawPricePoint `json:"candles"`
}

type generateResponse struct {
	Report string `json:"report"`
}

// Generate produces the report payload for one ticker and business date.
func (c *Client) Generate(ctx context.Context, canonicalID, businessDate string, points []models.RawPricePoint) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("report service url not configured")
	}
	if len(points) == 0 {
		return "", fmt.Errorf("%s/%s: %w", canonicalID, businessDate, models.ErrNoData)
	}

	req := &generateRequest{
		Ticker:       canonicalID,
		BusinessDate: businessDate,
		Model:        c.model,
		Candles:      points,
	}

	var resp generateResponse
	var err error
	for attempt := 1; attempt <= c.retries+1; attempt++ {
		err = c.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    c.baseURL + "/v1/generate",
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: req,
		}, &resp)
		if err == nil {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", fmt.Errorf("generate %s/%s: %w", canonicalID, businessDate, err)
	}
	if resp.Report == "" {
		return "", fmt.Errorf("generate %s/%s: empty report", canonicalID, businessDate)
	}
	return resp.Report, nil
}

var _ domrepo.ReportGenerator = (*Client)(nil)
