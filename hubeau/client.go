// Package hubeau fetches drinking-water analysis results from the Hub'Eau
// "qualite_eau_potable" API and caches the responses on disk.
package hubeau

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/giygas/qualite-eau-api/hubeau/entities"
	"github.com/giygas/qualite-eau-api/logging"
	"github.com/giygas/qualite-eau-api/metrics"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
)

var (
	// ErrUpstream wraps every failure to obtain a response from Hub'Eau.
	ErrUpstream = errors.New("hubeau upstream error")

	// ErrRateLimited is returned while Hub'Eau asks the client to back off.
	ErrRateLimited = errors.New("hubeau rate limit reached")
)

const (
	resultatsPath = "/resultats_dis"

	defaultRetryAfter = 30 * time.Second
	maxBodySize       = 64 << 20
)

// requestedFields are the columns of resultats_dis the service reads.
var requestedFields = []string{
	"code_departement",
	"nom_departement",
	"code_prelevement",
	"code_parametre",
	"libelle_parametre",
	"resultat_alphanumerique",
	"resultat_numerique",
	"libelle_unite",
	"limite_qualite_parametre",
	"reference_qualite_parametre",
	"code_commune",
	"nom_commune",
	"date_prelevement",
	"conclusion_conformite_prelevement",
	"conformite_limites_bact_prelevement",
	"conformite_limites_pc_prelevement",
	"conformite_references_bact_prelevement",
	"conformite_references_pc_prelevement",
	"longitude",
	"latitude",
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Rate     float64 // requests per second
	PageSize int
	MaxPages int // pages followed through "next" links, 1 disables paging
	Clock    clockwork.Clock
}

// Client calls the Hub'Eau API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	pageSize   int
	maxPages   int
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock

	mu      sync.Mutex
	retryAt time.Time
}

// NewClient creates a Hub'Eau client.
func NewClient(opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), 1),
		clock:   opts.Clock,
	}
}

// FetchSamples returns every analysis result of a commune.
func (c *Client) FetchSamples(ctx context.Context, insee string) ([]entities.Sample, error) {
	resp, err := c.FetchResultats(ctx, insee)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchResultats returns the response envelope of a commune, following
// "next" links up to the configured page count. Data holds every page.
func (c *Client) FetchResultats(ctx context.Context, insee string) (entities.ResultatsResponse, error) {
	params := url.Values{
		"code_commune": {insee},
		"size":         {strconv.Itoa(c.pageSize)},
		"fields":       {strings.Join(requestedFields, ",")},
	}
	next := c.baseURL + resultatsPath + "?" + params.Encode()

	var merged entities.ResultatsResponse
	for page := 0; page < c.maxPages && next != ""; page++ {
		resp, err := c.fetchPage(ctx, next)
		if err != nil {
			return entities.ResultatsResponse{}, err
		}

		if page == 0 {
			merged = resp
			merged.Data = append([]entities.Sample(nil), resp.Data...)
		} else {
			merged.Data = append(merged.Data, resp.Data...)
		}
		merged.Next = resp.Next
		next = resp.Next
	}

	if merged.Next != "" {
		logging.Warn("Hub'Eau results truncated", "insee", insee, "count", merged.Count, "fetched", len(merged.Data))
	}
	return merged, nil
}

func (c *Client) fetchPage(ctx context.Context, fullURL string) (entities.ResultatsResponse, error) {
	if err := c.wait(ctx); err != nil {
		return entities.ResultatsResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return entities.ResultatsResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveHubeau(metrics.OutcomeNetwork, c.clock.Since(start))
		return entities.ResultatsResponse{}, fmt.Errorf("%w: request failed: %w", ErrUpstream, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close Hub'Eau response body", "error", err)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusTooManyRequests:
		until := c.backoff(resp.Header.Get("Retry-After"))
		metrics.ObserveHubeau(metrics.OutcomeRateLimited, c.clock.Since(start))
		return entities.ResultatsResponse{}, fmt.Errorf("%w: retry after %s", ErrRateLimited, until.Format(time.RFC3339))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.ObserveHubeau(metrics.OutcomeHTTPError, c.clock.Since(start))
		return entities.ResultatsResponse{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.ObserveHubeau(metrics.OutcomeNetwork, c.clock.Since(start))
		return entities.ResultatsResponse{}, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}

	var out entities.ResultatsResponse
	if err := json.NewDecoder(utf8Reader(body)).Decode(&out); err != nil {
		metrics.ObserveHubeau(metrics.OutcomeDecode, c.clock.Since(start))
		return entities.ResultatsResponse{}, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	metrics.ObserveHubeau(metrics.OutcomeSuccess, c.clock.Since(start))
	logging.Debug("Hub'Eau page fetched", "url", fullURL, "count", out.Count, "rows", len(out.Data))
	return out, nil
}

// utf8Reader decodes bodies that are not valid UTF-8 as ISO-8859-1.
func utf8Reader(body []byte) io.Reader {
	if utf8.Valid(body) {
		return bytes.NewReader(body)
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body))
}

// wait blocks on the outbound throttle. While a 429 backoff is pending it
// fails fast with ErrRateLimited instead of holding the caller.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	retryAt := c.retryAt
	c.mu.Unlock()

	if now := c.clock.Now(); now.Before(retryAt) {
		return fmt.Errorf("%w: retry in %s", ErrRateLimited, retryAt.Sub(now).Round(time.Second))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: throttle: %w", ErrUpstream, err)
	}
	return nil
}

// backoff records the Retry-After of a 429, in seconds or as an HTTP date.
func (c *Client) backoff(retryAfter string) time.Time {
	now := c.clock.Now()
	until := now.Add(defaultRetryAfter)

	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		until = now.Add(time.Duration(secs) * time.Second)
	} else if at, err := http.ParseTime(retryAfter); err == nil {
		until = at
	}

	c.mu.Lock()
	if until.After(c.retryAt) {
		c.retryAt = until
	}
	c.mu.Unlock()

	logging.Warn("Hub'Eau rate limit reached, backing off", "until", until)
	return until
}

// RetryAt returns the end of the current 429 backoff, zero when none.
func (c *Client) RetryAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryAt
}
