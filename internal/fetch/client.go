// Package fetch pulls listings into campfinder from the hosted backend
// table or from local YAML/JSON files.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/campfinder/internal/filter"
	"github.com/abelbrown/campfinder/internal/listing"
)

// ErrUnauthorized is returned when the backend rejects the API key.
var ErrUnauthorized = errors.New("backend rejected credentials")

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string // e.g. https://xyz.supabase.co
	APIKey            string
	Table             string  // default "listings"
	PageSize          int     // default 500
	RequestsPerSecond float64 // default 5
	Timeout           time.Duration
}

// Client reads the listings table through the backend's REST interface.
type Client struct {
	baseURL  string
	apiKey   string
	table    string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.Table == "" {
		opts.Table = "listings"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		table:    opts.Table,
		pageSize: opts.PageSize,
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		backoffs: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Available reports whether a backend URL is configured.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// Name identifies the source in sync status and events.
func (c *Client) Name() string {
	return "backend/" + c.table
}

// FetchAll pages through the table newest first until a short page.
// Does NOT store anything - the caller decides.
func (c *Client) FetchAll(ctx context.Context) ([]listing.Listing, error) {
	if !c.Available() {
		return nil, errors.New("backend url not configured")
	}

	var all []listing.Listing
	for offset := 0; ; offset += c.pageSize {
		rows, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, Normalize(rows)...)
		if len(rows) < c.pageSize {
			// Rows inserted mid-scan shift later offsets and repeat ids.
			return filter.DedupByID(all), nil
		}
	}
}

func (c *Client) pageURL(offset int) string {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc,id.asc")
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	return c.baseURL + "/rest/v1/" + url.PathEscape(c.table) + "?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]listing.Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := c.doWithRetry(ctx, c.pageURL(offset))
	if err != nil {
		return nil, err
	}

	var rows []listing.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse page at offset %d: %w", offset, err)
	}
	return rows, nil
}

// doWithRetry retries 429 and 5xx responses with backoff, honoring
// Retry-After on 429.
func (c *Client) doWithRetry(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= len(c.backoffs); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "campfinder/1.0")
		if c.apiKey != "" {
			req.Header.Set("apikey", c.apiKey)
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		delay := time.Duration(0)
		if attempt < len(c.backoffs) {
			delay = c.backoffs[attempt]
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		resp.Body.Close()

		switch {
		case readErr != nil:
			lastErr = fmt.Errorf("read response: %w", readErr)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUnauthorized)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("backend error (status %d): %s", resp.StatusCode, snippet(body))
			if resp.StatusCode == http.StatusTooManyRequests {
				if ra, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && ra > 0 {
					delay = min(time.Duration(ra)*time.Second, 30*time.Second)
				}
			}
		default:
			return nil, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, snippet(body))
		}

		if attempt < len(c.backoffs) {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("backend request failed after %d retries: %w", len(c.backoffs), lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
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

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
