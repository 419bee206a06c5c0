package manifest

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// HTTPProvider fetches the manifest JSON document from a remote HTTPS
// endpoint. It satisfies orchestrator.ManifestProvider.
type HTTPProvider struct {
	URL        string
	Client     *http.Client
	MaxRetries int
	BaseDelay  time.Duration
}

// NewHTTPProvider builds a provider with a 30s fetch timeout and 3 retries
// with exponential backoff.
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		URL:        url,
		Client:     &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Fetch retrieves and parses the manifest, retrying any failed attempt
// (transport error, non-200 status of any kind, or a body that does not
// parse) up to MaxRetries times with exponential backoff. It does not call Validate;
// callers must validate before acting on the result.
func (p *HTTPProvider) Fetch(ctx context.Context) (*Manifest, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		m, err := p.fetchOnce(ctx, client)
		if err == nil {
			return m, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("manifest: fetch %s failed after %d attempts: %w", p.URL, maxRetries+1, lastErr)
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, client *http.Client) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("manifest: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest: request %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest: %s returned HTTP %d", p.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("manifest: read response body: %w", err)
	}

	return Parse(body)
}
