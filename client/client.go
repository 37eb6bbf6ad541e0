// Package client is the JSON-over-HTTP client used to reach the token issuer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTimeout = 3 * time.Second
	maxFailCount   = 5
	failWindow     = 30 * time.Second
)

var ErrUnavailable = fmt.Errorf("endpoint temporarily unavailable")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	endpoint  string
}

func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := http.Client{
		Timeout: timeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(failWindow, 2*failWindow),
		userAgent: "ethsign",
		endpoint:  strings.TrimSuffix(endpoint, "/"),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// failing reports whether the endpoint failed too often within the window.
func (c *Client) failing() bool {
	count, found := c.cache.Get("fail:" + c.endpoint)
	return found && count.(int) >= maxFailCount
}

func (c *Client) recordFailure() {
	if err := c.cache.Increment("fail:"+c.endpoint, 1); err != nil {
		c.cache.Set("fail:"+c.endpoint, 1, cache.DefaultExpiration)
	}
}

// Do sends body as JSON to path and decodes a JSON response into response
// when it is non-nil. Transport errors and 5xx responses count toward the
// failure window; once it is full, calls fail with ErrUnavailable.
func (c *Client) Do(ctx context.Context, method, path string, body, response any) error {
	if c.failing() {
		return ErrUnavailable
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			c.recordFailure()
		}
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	c.cache.Delete("fail:" + c.endpoint)

	if response == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
