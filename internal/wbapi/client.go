// Package wbapi fetches sales, stocks and product cards from the marketplace
// HTTP API and assembles them into a report with the canonical columns.
package wbapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	apperrors "wbreports/internal/errors"
	"wbreports/internal/infrastructure"
)

// API paths.
const (
	SalesPath  = "/api/v1/supplier/sales"
	StocksPath = "/api/v1/supplier/stocks"
	CardsPath  = "/content/v1/cards/cursor/list"
)

// DetailPaths are the reportDetailByPeriod versions, probed in order.
var DetailPaths = []string{
	"/api/v1/supplier/reportDetailByPeriod",
	"/api/v2/supplier/reportDetailByPeriod",
	"/api/v5/supplier/reportDetailByPeriod",
}

// ClientOptions configures a Client.
type ClientOptions struct {
	StatisticsURL string
	ContentURL    string
	Token         string
	Timeout       time.Duration
	RPS           float64
	Burst         int
	RetryCount    int
	// RetryWait is the first pause between retries; it grows up to ten times.
	RetryWait time.Duration
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Path, e.Status, e.Body)
}

// Client talks to the statistics and content APIs with one token. Requests
// share one rate limiter; 429 and 5xx responses are retried.
type Client struct {
	statistics *resty.Client
	content    *resty.Client
	limiter    *rate.Limiter
	metrics    *infrastructure.RunMetrics
	logger     *slog.Logger
}

// NewClient returns a client for opts.
func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}

	c := &Client{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "wbapi")),
	}
	c.statistics = c.newResty(opts.StatisticsURL, opts)
	c.content = c.newResty(opts.ContentURL, opts)
	return c
}

// WithMetrics counts requests on m.
func (c *Client) WithMetrics(m *infrastructure.RunMetrics) *Client {
	c.metrics = m
	return c
}

func (c *Client) newResty(baseURL string, opts ClientOptions) *resty.Client {
	wait := opts.RetryWait
	if wait <= 0 {
		wait = time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(opts.Token).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(10 * wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return r == nil || r.Request == nil || r.Request.Context().Err() == nil
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.limiter.Wait(req.Context())
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		path := res.Request.URL
		if res.Request.RawRequest != nil {
			path = res.Request.RawRequest.URL.Path
		}
		c.metrics.RecordAPIRequest(res.Request.Context(), path, res.StatusCode())
		c.logger.DebugContext(res.Request.Context(), "API response",
			slog.String("method", res.Request.Method),
			slog.String("path", path),
			slog.Int("status", res.StatusCode()),
			slog.Duration("elapsed", res.Time()))
		return nil
	})
	return client
}

func (c *Client) check(ctx context.Context, path string, res *resty.Response, err error) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperrors.NewNetworkError("API request failed", err).WithContext("path", path)
	}
	if res.IsError() {
		body := res.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &StatusError{Path: path, Status: res.StatusCode(), Body: body}
	}
	return nil
}

func apiDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Sales returns every sale recorded on date.
func (c *Client) Sales(ctx context.Context, date time.Time) ([]Sale, error) {
	var out []Sale
	res, err := c.statistics.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"dateFrom": apiDate(date),
			"dateTo":   apiDate(date),
			"flag":     "0",
		}).
		SetResult(&out).
		Get(SalesPath)
	if err := c.check(ctx, SalesPath, res, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Stocks returns the stock levels changed since date.
func (c *Client) Stocks(ctx context.Context, since time.Time) ([]Stock, error) {
	var out []Stock
	res, err := c.statistics.R().
		SetContext(ctx).
		SetQueryParam("dateFrom", apiDate(since)).
		SetResult(&out).
		Get(StocksPath)
	if err := c.check(ctx, StocksPath, res, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Detail fetches reportDetailByPeriod at path for one day. v5 wants RFC 3339
// bounds and an rrdid; older versions take plain dates.
func (c *Client) Detail(ctx context.Context, path string, date time.Time) ([]DetailRow, error) {
	params := map[string]string{
		"dateFrom": apiDate(date),
		"dateTo":   apiDate(date),
		"limit":    "100000",
	}
	if path == DetailPaths[len(DetailPaths)-1] {
		params["dateFrom"] = apiDate(date) + "T00:00:00Z"
		params["dateTo"] = apiDate(date) + "T23:59:59Z"
		params["rrdid"] = "0"
		delete(params, "limit")
	}

	var out []DetailRow
	res, err := c.statistics.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get(path)
	if err := c.check(ctx, path, res, err); err != nil {
		return nil, err
	}
	return out, nil
}

type cardsCursor struct {
	Limit     int    `json:"limit"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	NmID      int64  `json:"nmID,omitempty"`
}

type cardsRequest struct {
	Sort struct {
		Cursor cardsCursor `json:"cursor"`
		Filter struct {
			WithPhoto int `json:"withPhoto"`
		} `json:"filter"`
	} `json:"sort"`
}

type cardsResponse struct {
	Data struct {
		Cards  []Card `json:"cards"`
		Cursor struct {
			UpdatedAt string `json:"updatedAt"`
			NmID      int64  `json:"nmID"`
			Total     int    `json:"total"`
		} `json:"cursor"`
	} `json:"data"`
}

// Cards pages through every product card, pageSize at a time.
func (c *Client) Cards(ctx context.Context, pageSize int) (map[int64]Card, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	cards := make(map[int64]Card)

	var req cardsRequest
	req.Sort.Cursor.Limit = pageSize
	req.Sort.Filter.WithPhoto = -1

	for {
		var page cardsResponse
		res, err := c.content.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&page).
			Post(CardsPath)
		if err := c.check(ctx, CardsPath, res, err); err != nil {
			return cards, err
		}

		for _, card := range page.Data.Cards {
			if card.NmID != 0 {
				cards[card.NmID] = card
			}
		}

		next := page.Data.Cursor
		if len(page.Data.Cards) < pageSize || next.UpdatedAt == "" ||
			(next.UpdatedAt == req.Sort.Cursor.UpdatedAt && next.NmID == req.Sort.Cursor.NmID) {
			break
		}
		req.Sort.Cursor.UpdatedAt = next.UpdatedAt
		req.Sort.Cursor.NmID = next.NmID
		c.logger.DebugContext(ctx, "Fetched card page", slog.Int("cards", len(cards)))
	}
	return cards, nil
}
