// Package qiita fetches article metadata from the Qiita API v2 list
// endpoints, paging by tag or by free-text query.
package qiita

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/metrics"
)

const (
	DefaultBaseURL        = "https://qiita.com/api/v2"
	DefaultRequestTimeout = 15 * time.Second
	DefaultPageDelay      = 400 * time.Millisecond
	userAgent             = "title-trend-analytics/1.0"
)

// Article is the subset of a Qiita item the analysis reads. Missing or null
// counts decode as zero.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	LikesCount  int       `json:"likes_count"`
	StocksCount int       `json:"stocks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Selector picks the listing endpoint. A non-empty Query wins over Tag.
type Selector struct {
	Tag   string
	Query string
}

// QueryMode reports whether the selector uses the search endpoint.
func (s Selector) QueryMode() bool {
	return strings.TrimSpace(s.Query) != ""
}

func (s Selector) String() string {
	if s.QueryMode() {
		return "query:" + s.Query
	}
	return "tag:" + s.Tag
}

// FetchResult is everything a fetch collected. Err is nil when paging ended
// normally and otherwise holds the failure that truncated it.
type FetchResult struct {
	Articles []Article
	Pages    int
	Err      error
}

// Partial reports whether the fetch was cut short by a failure.
func (r FetchResult) Partial() bool {
	return r.Err != nil
}

// Pacer waits d between page requests and returns early with ctx's error.
type Pacer func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client is a Qiita API v2 client.
type Client struct {
	baseURL    string
	token      string
	pageDelay  time.Duration
	httpClient *http.Client
	pace       Pacer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token. An empty token sends anonymous requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRequestTimeout bounds each page request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithPageDelay sets the pause between successive page requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.pageDelay = d
		}
	}
}

// WithHTTPClient replaces the transport client. Its Timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPacer replaces the inter-page wait.
func WithPacer(p Pacer) Option {
	return func(c *Client) {
		if p != nil {
			c.pace = p
		}
	}
}

// WithMetrics records page outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client with the default base URL, timeout and delay.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		pageDelay:  DefaultPageDelay,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		pace:       sleep,
		logger:     slog.Default().With("component", "qiita-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch pages through the selected listing from page 1 to maxPages. Paging
// stops early on a page shorter than perPage or on the first failed request;
// whatever was collected before the stop is returned.
func (c *Client) Fetch(ctx context.Context, sel Selector, maxPages, perPage int) FetchResult {
	var res FetchResult
	logger := c.logger.With("selector", sel.String())

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := c.pace(ctx, c.pageDelay); err != nil {
				res.Err = fmt.Errorf("%w: page %d: %w", apperrors.ErrFetchFailed, page, err)
				break
			}
		}

		items, err := c.fetchPage(ctx, sel, page, perPage)
		if err != nil {
			c.observe("error")
			logger.Warn("page fetch failed, keeping partial result",
				"page", page,
				"collected", len(res.Articles),
				"error", err,
			)
			res.Err = fmt.Errorf("%w: page %d: %w", apperrors.ErrFetchFailed, page, err)
			break
		}

		res.Pages++
		res.Articles = append(res.Articles, items...)
		if len(items) < perPage {
			c.observe("short")
			logger.Debug("short page, stopping", "page", page, "items", len(items))
			break
		}
		c.observe("ok")
		logger.Debug("page fetched", "page", page, "items", len(items))
	}

	logger.Info("fetch finished",
		"pages", res.Pages,
		"articles", len(res.Articles),
		"partial", res.Partial(),
	)
	return res
}

func (c *Client) observe(status string) {
	if c.metrics != nil {
		c.metrics.FetchPagesTotal.WithLabelValues(status).Inc()
	}
}

func (c *Client) pageURL(sel Selector, page, perPage int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if sel.QueryMode() {
		q.Set("query", sel.Query)
		return c.baseURL + "/items?" + q.Encode()
	}
	return c.baseURL + "/tags/" + url.PathEscape(sel.Tag) + "/items?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, sel Selector, page, perPage int) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(sel, page, perPage), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("qiita API returned status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	items := make([]Article, 0, len(raw))
	for _, r := range raw {
		var a Article
		if err := json.Unmarshal(r, &a); err != nil {
			// A record with unexpected field types still counts as an item.
			a = lenientArticle(r)
		}
		items = append(items, a)
	}
	return items, nil
}

// lenientArticle salvages what it can from a malformed record; fields of the
// wrong type are left at their zero value.
func lenientArticle(r json.RawMessage) Article {
	var fields map[string]json.RawMessage
	var a Article
	if json.Unmarshal(r, &fields) != nil {
		return a
	}
	_ = json.Unmarshal(fields["id"], &a.ID)
	_ = json.Unmarshal(fields["title"], &a.Title)
	_ = json.Unmarshal(fields["url"], &a.URL)
	_ = json.Unmarshal(fields["likes_count"], &a.LikesCount)
	_ = json.Unmarshal(fields["stocks_count"], &a.StocksCount)
	_ = json.Unmarshal(fields["created_at"], &a.CreatedAt)
	return a
}
