package policy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/joshsymonds/footprint/internal/textnorm"
)

const (
	// DefaultFetchTimeout bounds one policy download.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultMaxBodyBytes bounds the policy body read.
	DefaultMaxBodyBytes = 2 << 20
	defaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
)

// Fetcher downloads a policy and returns its visible text.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher fetches policies over HTTP(S) and strips markup.
type HTTPFetcher struct {
	Client       *http.Client
	UserAgent    string
	MaxBodyBytes int64
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:       &http.Client{Timeout: DefaultFetchTimeout},
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("fetch policy: %q is not an http(s) url", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch policy: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch policy %s: %w", u.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch policy %s: status %d", u.Host, resp.StatusCode)
	}
	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read policy %s: %w", u.Host, err)
	}
	return textnorm.StripMarkup(string(body)), nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
