package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// UserAgent is sent by every backend client (§6 "Every backend sends a
// User-Agent naming the tool").
const UserAgent = "hallucinator-check/1.0 (+https://github.com/CristianCantoro/hallucinator)"

// get issues a GET request with the shared User-Agent header and returns
// the response body, translating HTTP status into the backend error
// vocabulary: 429 becomes *RateLimitedError, 5xx/network failures are plain
// transient errors, and any other non-2xx is a transient error too (backends
// treat "not found" as a 200 with an empty result set, not a 404).
func get(ctx context.Context, client *http.Client, url string, extraHeaders map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read body: %w", err)
	}
	return body, nil
}

// parseRetryAfter parses the Retry-After header in either its integer-seconds
// or HTTP-date form (§4.6). Returns nil if absent or unparsable.
func parseRetryAfter(v string) *time.Duration {
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}
