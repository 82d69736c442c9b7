package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxPageBytes = 5 << 20

// httpError is an HTTP status of 400 or above from the article host.
type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, http.StatusText(e.code))
}

// Fetcher downloads a page and extracts its readable text.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A zero timeout means 15s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchText returns the main text of the page at pageURL. An empty string
// with a nil error means the page had nothing extractable.
func (f *Fetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "techblog/1.0 (feed importer)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(article.TextContent), nil
}
