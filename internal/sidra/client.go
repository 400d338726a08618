// Package sidra fetches survey tables from the IBGE SIDRA values API and
// adapts them into labeled observations.
package sidra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
	"github.com/gabriellymonarca/Ecotrack/internal/ratelimit"
)

const (
	defaultBaseURL = "https://apisidra.ibge.gov.br"
	defaultTimeout = 60 * time.Second

	maxBodyBytes = 64 << 20
)

// Client is a rate-limited SIDRA client with bounded retries.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	baseURL     string
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client from SIDRA settings. Zero values fall back to defaults.
func New(cfg config.SIDRAConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		logger:      logger,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		sleep:       sleepContext,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Fetch downloads one table extract and returns its cleaned observations.
// Transient failures are retried with exponential backoff; shape errors and
// client errors are returned immediately.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Observation, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff(attempt - 1)
			c.logger.Warn("retrying sidra request",
				"table", q.Table,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, wrapError("fetch", q.Table, err)
			}
		}

		body, err := c.doRequest(ctx, q)
		if err == nil {
			obs, dropped, err := decodeTable(body, q.labelColumn())
			if err != nil {
				return nil, wrapError("decode", q.Table, err)
			}
			if dropped > 0 {
				c.logger.Debug("dropped incomplete rows", "table", q.Table, "rows", dropped)
			}
			return obs, nil
		}

		lastErr = err
		if !domainerrors.IsTransient(err) {
			break
		}
	}
	return nil, wrapError("fetch", q.Table, lastErr)
}

// SectorData maps a dataset name ("volume", "group", ...) to its observations.
type SectorData map[string][]Observation

// FetchSector fetches every dataset of a sector in catalog order and stops
// at the first failure.
func (c *Client) FetchSector(ctx context.Context, sector string) (SectorData, error) {
	datasets, ok := Catalog()[sector]
	if !ok {
		return nil, domainerrors.Validationf("unknown sector %q", sector)
	}

	out := make(SectorData, len(datasets))
	for _, ds := range datasets {
		obs, err := c.Fetch(ctx, ds.Query)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", sector, ds.Name, err)
		}
		c.logger.Info("fetched dataset",
			"sector", sector,
			"dataset", ds.Name,
			"table", ds.Query.Table,
			"rows", len(obs),
		)
		out[ds.Name] = obs
	}
	return out, nil
}

// doRequest executes one rate-limited GET.
func (c *Client) doRequest(ctx context.Context, q Query) ([]byte, error) {
	if err := c.limiter.Wait(ctx, q.Table); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+q.Path(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Ecotrack/1.0")
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.logger.Debug("sidra request", "table", q.Table, "path", q.Path())

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domainerrors.Upstream(err, "sidra request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domainerrors.Upstream(err, "read sidra response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domainerrors.Upstream(nil, fmt.Sprintf("sidra status %d", resp.StatusCode))
	default:
		return nil, domainerrors.DataShapef("sidra rejected query with status %d: %s",
			resp.StatusCode, truncate(string(body), 200))
	}
}

// backoff returns the wait before retry n (1-based): base * 2^(n-1), capped.
func (c *Client) backoff(n int) time.Duration {
	if c.backoffBase <= 0 {
		return 0
	}
	wait := c.backoffBase << (n - 1)
	if c.backoffMax > 0 && (wait > c.backoffMax || wait <= 0) {
		wait = c.backoffMax
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
