package coversearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tafsync/internal/logging"
	"tafsync/internal/services"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	defaultRate        = 1.0
	maxImageBytes      = 20 << 20
	userAgent          = "tafsync/1.0 (+cover lookup)"
)

// Cover is one image search hit. Score is the provider's relevance in 0..100.
type Cover struct {
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Title     string  `json:"title,omitempty"`
	Source    string  `json:"source,omitempty"`
	Score     float64 `json:"score"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
}

// Client searches for covers and downloads images.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRateLimit sets the sustained number of search requests per second. A
// non-positive value disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a cover search client for the API at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "coversearch", "new client", "search url required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRate), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "coversearch")
	return client, nil
}

// NewDownloader creates a client that can only download images. Search on it
// fails with a configuration error.
func NewDownloader(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "coversearch")
	return client
}

type searchResponse struct {
	Results []Cover `json:"results"`
}

// Search returns up to limit covers for query, best first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Cover, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "coversearch", "search", "query must not be empty", nil)
	}
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "coversearch", "search", "search url not configured", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "coversearch", "search", "rate limit wait", err)
	}

	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "search", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, services.Wrap(markerFor(err), "coversearch", "search", fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "search",
			fmt.Sprintf("search returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "search", "decode response", err)
	}
	covers := make([]Cover, 0, len(payload.Results))
	for _, cover := range payload.Results {
		if strings.TrimSpace(cover.URL) == "" {
			continue
		}
		covers = append(covers, cover)
	}
	if limit > 0 && len(covers) > limit {
		covers = covers[:limit]
	}
	c.logger.Debug("cover search complete",
		logging.String("query", query),
		logging.Int("result_count", len(covers)),
		logging.Duration("latency", latency))
	return covers, nil
}

// Download fetches the image at imageURL. Responses that are not images are
// rejected.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, services.Wrap(services.ErrValidation, "coversearch", "download", "image url must be http(s)", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "download", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(markerFor(err), "coversearch", "download", parsed.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "download",
			fmt.Sprintf("%s returned %d", parsed.Host, resp.StatusCode), nil)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, services.Wrap(services.ErrValidation, "coversearch", "download",
			fmt.Sprintf("not an image: %q", contentType), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrLookup, "coversearch", "download", "read body", err)
	}
	if len(data) > maxImageBytes {
		return nil, services.Wrap(services.ErrValidation, "coversearch", "download", "image exceeds size limit", nil)
	}
	c.logger.Debug("image downloaded", logging.Int("bytes", len(data)), logging.String("host", parsed.Host))
	return data, nil
}

func markerFor(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.ErrTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.ErrTimeout
	}
	return services.ErrLookup
}
