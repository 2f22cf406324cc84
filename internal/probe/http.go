package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

type client struct {
	http *http.Client
	base string
}

func newClient(base string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, base: base}
}

func (c *client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d: %s", ErrUnexpectedStatus, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil, nil)
}

func (c *client) page(ctx context.Context, period string, n, size int) (page, error) {
	q := url.Values{"page": {strconv.Itoa(n)}}
	if period != "" {
		q.Set("period", period)
	}
	if size > 0 {
		q.Set("pageSize", strconv.Itoa(size))
	}
	var p page
	err := c.getJSON(ctx, "/leaderboard", q, &p)
	return p, err
}

// fetchAll reads page one to learn the page count, then the rest
// concurrently. Pages come back in order.
func (c *client) fetchAll(ctx context.Context, cfg *Config) ([]page, error) {
	first, err := c.page(ctx, cfg.Period, 1, cfg.PageSize)
	if err != nil {
		return nil, err
	}
	pages := make([]page, max(first.TotalPages, 1))
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := 2; i <= first.TotalPages; i++ {
		g.Go(func() error {
			p, err := c.page(gctx, cfg.Period, i, cfg.PageSize)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			pages[i-1] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *client) verifySeason(ctx context.Context, season uint64) (bool, error) {
	var res verifyResult
	if err := c.getJSON(ctx, "/seasons/"+strconv.FormatUint(season, 10)+"/verify", nil, &res); err != nil {
		return false, err
	}
	return res.Valid, nil
}
