package crepl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const userAgent = "crepl/1.0"

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetcher reads source text from a local path or a URL.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// Fetch returns the bytes behind locator. URL responses outside 2xx, and
// empty bodies, are errors.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" {
		return nil, errors.New("empty source locator")
	}
	if !IsURL(locator) {
		return os.ReadFile(locator)
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response received from server")
	}
	return body, nil
}
