package mediaserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"tafsync/internal/catalog"
	"tafsync/internal/library"
	"tafsync/internal/logging"
	"tafsync/internal/services"
)

const (
	defaultHTTPTimeout = 10 * time.Second

	fileIndexPath     = "/api/fileIndexV2"
	referenceJSONPath = "/api/toniesJson"
	reloadPath        = "/api/toniesJsonReload"

	// The server reports some directories as files of this size.
	directorySizeHint = 4096
)

var knownFileExtensions = map[string]struct{}{
	".taf": {}, ".jpg": {}, ".png": {}, ".json": {}, ".txt": {}, ".log": {},
}

// Client is an HTTP client for the media server API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
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

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a media server client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mediaserver", "new client", "server url required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "mediaserver")
	return client, nil
}

type fileIndexResponse struct {
	Files []struct {
		Name      string `json:"name"`
		Size      int64  `json:"size"`
		IsDir     bool   `json:"isDir"`
		TAFHeader *struct {
			AudioID      json.Number `json:"audioId"`
			SHA1Hash     string      `json:"sha1Hash"`
			TrackSeconds []int       `json:"trackSeconds"`
		} `json:"tafHeader"`
	} `json:"files"`
	Directories []struct {
		Name string `json:"name"`
	} `json:"directories"`
}

// ListDirectory returns the content of a library directory.
func (c *Client) ListDirectory(ctx context.Context, dir string) (library.Listing, error) {
	params := url.Values{}
	params.Set("path", dir)
	params.Set("special", "library")

	var payload fileIndexResponse
	if err := c.getJSON(ctx, fileIndexPath, params, &payload); err != nil {
		return library.Listing{}, services.Wrap(markerFor(err), "mediaserver", "list directory", dir, err)
	}

	listing := library.Listing{Directories: []string{}, Files: []library.File{}}
	for _, d := range payload.Directories {
		listing.Directories = append(listing.Directories, d.Name)
	}
	for _, f := range payload.Files {
		if f.Name == "" || f.Name == "." || f.Name == ".." {
			continue
		}
		if f.IsDir || probablyDirectory(f.Name, f.Size) {
			listing.Directories = append(listing.Directories, f.Name)
			continue
		}
		file := library.File{Name: f.Name, Size: f.Size}
		if h := f.TAFHeader; h != nil {
			info := &library.HeaderInfo{Hash: strings.ToLower(h.SHA1Hash), TrackSeconds: h.TrackSeconds}
			if id, err := h.AudioID.Int64(); err == nil && id > 0 && id <= int64(^uint32(0)) {
				info.AudioID = uint32(id)
			}
			file.Header = info
		}
		listing.Files = append(listing.Files, file)
	}
	return listing, nil
}

// LoadCatalog downloads the reference catalog.
func (c *Client) LoadCatalog(ctx context.Context) ([]catalog.Entry, error) {
	body, err := c.get(ctx, referenceJSONPath, nil)
	if err != nil {
		return nil, services.Wrap(markerFor(err), "mediaserver", "load catalog", "", err)
	}
	entries, err := catalog.DecodeEntries(body)
	if err != nil {
		return nil, services.Wrap(services.ErrLookup, "mediaserver", "load catalog", "decode", err)
	}
	c.logger.Debug("reference catalog downloaded", logging.Int("entry_count", len(entries)))
	return entries, nil
}

// TriggerReload asks the server to re-read its catalog files.
func (c *Client) TriggerReload(ctx context.Context) error {
	if _, err := c.get(ctx, reloadPath, nil); err != nil {
		return services.Wrap(markerFor(err), "mediaserver", "trigger reload", "", err)
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("media server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("media server returned %d: %s", e.StatusCode, e.Body)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	c.logger.Debug("media server request complete",
		logging.String("endpoint", endpoint),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency))
	return body, nil
}

func markerFor(err error) error {
	var statusErr *httpStatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return services.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return services.ErrTimeout
	default:
		return services.ErrLookup
	}
}

func probablyDirectory(name string, size int64) bool {
	if size != directorySizeHint {
		return false
	}
	if _, ok := knownFileExtensions[strings.ToLower(path.Ext(name))]; ok {
		return false
	}
	// hidden files such as ._.DS_Store
	return !(strings.HasPrefix(name, ".") && strings.Contains(name[1:], "."))
}
