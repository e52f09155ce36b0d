// Package overlay fetches best-effort busy time from an external calendar
// bridge. Any failure (no calendar connected, transport error, bad payload,
// cache outage) degrades to "no additional exclusions" and must never fail a
// booking.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yordan-p/slotledger/internal/model"
)

type BusyRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Client struct {
	http     *http.Client
	baseURL  string
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

type Config struct {
	// BaseURL empty disables the overlay entirely.
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func NewClient(logger *slog.Logger, rdb *redis.Client, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.BaseURL,
		rdb:      rdb,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// BusyRanges returns the provider's external busy time within [from, to).
// Callers must invoke this before opening their commit transaction; the call
// can block up to the configured timeout.
func (c *Client) BusyRanges(ctx context.Context, provider model.ProviderRef, from, to time.Time) []BusyRange {
	if c == nil || c.baseURL == "" {
		return nil
	}

	cacheKey := fmt.Sprintf("overlay:%s:%s:%s", provider.Kind, provider.ID, from.UTC().Format("2006-01-02"))
	if cached, ok := c.fromCache(ctx, cacheKey); ok {
		return cached
	}

	ranges, err := c.fetch(ctx, provider, from, to)
	if err != nil {
		c.logger.Warn("external calendar overlay unavailable; skipping busy check",
			"provider_kind", provider.Kind, "provider_id", provider.ID, "err", err)
		return nil
	}

	c.toCache(ctx, cacheKey, ranges)
	return ranges
}

func (c *Client) fetch(ctx context.Context, provider model.ProviderRef, from, to time.Time) ([]BusyRange, error) {
	q := url.Values{}
	q.Set("provider_kind", string(provider.Kind))
	q.Set("provider_id", provider.ID)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/busy?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 404 means no calendar connected for this provider: empty, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return []BusyRange{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar bridge returned %d", resp.StatusCode)
	}

	var ranges []BusyRange
	if err := json.NewDecoder(resp.Body).Decode(&ranges); err != nil {
		return nil, fmt.Errorf("decode busy ranges: %w", err)
	}
	return ranges, nil
}

func (c *Client) fromCache(ctx context.Context, key string) ([]BusyRange, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("overlay cache read failed", "err", err)
		}
		return nil, false
	}
	var ranges []BusyRange
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil, false
	}
	return ranges, true
}

func (c *Client) toCache(ctx context.Context, key string, ranges []BusyRange) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(ranges)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("overlay cache write failed", "err", err)
	}
}
