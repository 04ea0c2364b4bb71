// Package banner renders welcome/leave banner images through an external
// compositing API and fetches direct image URLs. Image compositing itself
// is never done in-process.
package banner

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Renderer produces a banner image for a joining or leaving participant.
type Renderer interface {
	Render(ctx context.Context, avatarURL, title, message string) ([]byte, error)
}

// Fetcher downloads a direct image URL.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// maxImageBytes caps downloaded image size to keep a hostile URL from
// exhausting memory.
const maxImageBytes = 8 << 20

// HTTPClient is a Renderer and Fetcher backed by an HTTP banner API.
type HTTPClient struct {
	apiBase string
	client  *retryablehttp.Client
}

// NewHTTPClient creates a banner client for the given API base URL.
func NewHTTPClient(apiBase string, timeout time.Duration) *HTTPClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &HTTPClient{apiBase: apiBase, client: client}
}

// Render asks the banner API for a composited image.
func (c *HTTPClient) Render(ctx context.Context, avatarURL, title, message string) ([]byte, error) {
	q := url.Values{}
	q.Set("avatar", avatarURL)
	q.Set("title", title)
	q.Set("message", message)
	return c.get(ctx, c.apiBase+"?"+q.Encode())
}

// Fetch downloads a direct image URL.
func (c *HTTPClient) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	return c.get(ctx, imageURL)
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("image fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image fetch: empty body")
	}
	return data, nil
}
