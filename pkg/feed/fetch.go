package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client fetches feed bodies and image files over HTTP(S). It honors the
// ambient proxy configuration and sends a fixed identity string.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates an HTTP client with the given per-request timeout.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Get retrieves the body at url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck // read-only stream

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// Download streams the body at url into dest. The file is written to a
// temporary sibling and renamed, so a failed download never leaves a
// partial file behind.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	body, err := c.open(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck // read-only stream

	tmp, err := os.CreateTemp(os.TempDir(), "randpic-dl-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		// temp dir may be on another filesystem, fall back to a copy
		data, rdErr := os.ReadFile(tmp.Name())
		if rdErr != nil {
			return fmt.Errorf("move %s to %s: %w", tmp.Name(), dest, err)
		}
		if wrErr := os.WriteFile(dest, data, 0o600); wrErr != nil {
			return fmt.Errorf("write %s: %w", dest, wrErr)
		}
	}
	return nil
}

func (c *Client) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status code: %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
