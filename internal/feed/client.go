package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultEndpoint = "https://interview.switcheo.com/prices.json"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=feed_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the raw price feed from a single JSON endpoint.
type Client struct {
	// name is the display name reported by Name.
	name string
	// endpoint is the feed URL.
	endpoint string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the feed client.
type ClientOption func(*Client)

// WithEndpoint overrides the feed URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader adds headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a feed client for the configured endpoint.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		name:       "PriceFeed",
		endpoint:   defaultEndpoint,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

// Fetch retrieves and decodes the full feed. Any transport failure,
// non-success status or undecodable payload is returned as an error;
// per-record validation is the normalizer's job, not the client's.
func (c *Client) Fetch(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var records []Record
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return records, nil
}
