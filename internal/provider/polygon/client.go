package polygon

import (
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Source tags every batch produced by this client.
	Source = "POLYGON_OPTIONS"
	// DefaultBaseURL is the public Polygon REST endpoint.
	DefaultBaseURL = "https://api.polygon.io"
)

// placeholderKeys are values shipped in sample env files. Treating them as
// missing avoids sending a request that can only fail with 401.
var placeholderKeys = map[string]struct{}{
	"demo":                      {},
	"your_polygon_api_key_here": {},
	"your_api_key_here":         {},
	"YOUR_POLYGON_API_KEY":      {},
	"YOUR_API_KEY":              {},
	"changeme":                  {},
}

// IsPlaceholderKey reports whether key is empty or a known sample value.
func IsPlaceholderKey(key string) bool {
	k := strings.TrimSpace(key)
	if k == "" {
		return true
	}
	_, ok := placeholderKeys[k]
	return ok
}

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=polygon_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches option contract snapshots from Polygon, one request per
// contract.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey is sent both as a query parameter and a bearer token.
	apiKey string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// maxConcurrency caps in-flight requests per batch; 0 means unbounded.
	maxConcurrency int
	now            func() time.Time
}

// ClientOption is a configuration option for the Polygon client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithMaxConcurrency limits how many contract requests run at once.
func WithMaxConcurrency(n int) ClientOption {
	return func(c *Client) {
		c.maxConcurrency = n
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Polygon client. An empty or placeholder key is
// accepted here; Fetch reports it.
func NewClient(apiKey string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: http.DefaultClient,
		header:     http.Header{},
		now:        time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return "polygon" }
