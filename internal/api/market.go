package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"divtrack/internal/cache"
	"divtrack/internal/errors"
	"divtrack/internal/models"
)

// Quote fetches the latest price for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = models.NormalizeTicker(ticker)
	key := "price:" + ticker

	return cache.Fetch(ctx, c.cache, c.logger, key, c.ttls.Quote, nil, func(ctx context.Context) (models.Quote, error) {
		var resp quoteResponse
		req := request{method: http.MethodGet, endpoint: "price", path: "price/" + url.PathEscape(ticker)}
		if err := c.do(ctx, req, &resp); err != nil {
			return models.Quote{}, err
		}
		if resp.Error != "" {
			return models.Quote{}, errors.NewValidationError("ticker", ticker, resp.Error)
		}

		q := models.Quote{
			Ticker:    models.NormalizeTicker(resp.Ticker),
			Price:     resp.Price,
			Source:    resp.Source,
			Timestamp: resp.Timestamp.Time,
		}
		if q.Ticker == "" {
			q.Ticker = ticker
		}
		return q, nil
	})
}

// History fetches up to days of daily closes in chronological order.
// Rows without a close are dropped.
func (c *Client) History(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	ticker = models.NormalizeTicker(ticker)
	key := fmt.Sprintf("historical:%s:%d", ticker, days)

	return cache.Fetch(ctx, c.cache, c.logger, key, c.ttls.History, nil, func(ctx context.Context) ([]models.PricePoint, error) {
		var resp historyResponse
		req := request{
			method:   http.MethodGet,
			endpoint: "historical",
			path:     "historical/" + url.PathEscape(ticker),
			query:    url.Values{"days": {strconv.Itoa(days)}},
		}
		if err := c.do(ctx, req, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, errors.NewValidationError("ticker", ticker, resp.Error)
		}

		points := make([]models.PricePoint, 0, len(resp.Data))
		for _, row := range resp.Data {
			if row.Close == nil {
				continue
			}
			points = append(points, models.PricePoint{Date: row.Date.Time, Close: *row.Close})
		}
		sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
		return points, nil
	})
}

// Dividends fetches up to limit dividends, most recent first.
func (c *Client) Dividends(ctx context.Context, ticker string, limit int) ([]models.Dividend, error) {
	ticker = models.NormalizeTicker(ticker)
	key := fmt.Sprintf("dividends:%s:%d", ticker, limit)

	return cache.Fetch(ctx, c.cache, c.logger, key, c.ttls.Dividends, nil, func(ctx context.Context) ([]models.Dividend, error) {
		var resp dividendsResponse
		req := request{
			method:   http.MethodGet,
			endpoint: "dividends",
			path:     "dividends/" + url.PathEscape(ticker),
		}
		if limit > 0 {
			req.query = url.Values{"limit": {strconv.Itoa(limit)}}
		}
		if err := c.do(ctx, req, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, errors.NewValidationError("ticker", ticker, resp.Error)
		}

		divs := make([]models.Dividend, len(resp.Dividends))
		for i, row := range resp.Dividends {
			divs[i] = models.Dividend{Date: row.Date.Time, Amount: row.Amount}
		}
		sort.SliceStable(divs, func(i, j int) bool { return divs[i].Date.After(divs[j].Date) })
		if limit > 0 && len(divs) > limit {
			divs = divs[:limit]
		}
		return divs, nil
	})
}
