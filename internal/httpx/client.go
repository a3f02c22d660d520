package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/version"
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  version.UserAgent(),
	}
}

// DoJSON sends req, retrying transport failures, 429 and 5xx responses, and
// decodes a 2xx body into out. The raw body is returned for callers that cache it.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) ([]byte, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "read server response", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = clierr.New(clierr.CodeRateLimited, "server rate limited request")
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, clierr.New(clierr.CodeAuth, "server authentication failed")
		case resp.StatusCode == http.StatusNotFound:
			return nil, clierr.New(clierr.CodeNotFound, fmt.Sprintf("%s not found", req.URL.Path))
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = clierr.New(clierr.CodeUnavailable, fmt.Sprintf("server unavailable (status %d)", resp.StatusCode))
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("server returned unexpected status %d", resp.StatusCode))
		}

		if out == nil {
			return buf, nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return nil, clierr.New(clierr.CodeUnavailable, "server returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "decode server JSON", err)
		}
		return buf, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, clierr.New(clierr.CodeUnavailable, "request failed")
}

func GetJSON(ctx context.Context, c *Client, url string, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return clierr.Wrap(clierr.CodeUnavailable, "server timeout", err)
		}
	}
	return clierr.Wrap(clierr.CodeUnavailable, "server request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
