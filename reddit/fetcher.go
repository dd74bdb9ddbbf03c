package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	userAgent           = "reddit-or-replicant/1.0"
)

var postURLPattern = regexp.MustCompile(`^https?://(www\.|old\.)?reddit\.com/r/\w+/comments/\w+`)

type InvalidURLError struct {
	URL string
}

func (err InvalidURLError) Error() string {
	return fmt.Sprintf("not a reddit post url: %q", err.URL)
}

type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (err FetchError) Error() string {
	if err.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %q: status %d", err.URL, err.StatusCode)
	}

	return fmt.Sprintf("failed to fetch %q: %s", err.URL, err.Reason)
}

// ValidateURL reports whether rawURL looks like a Reddit post URL.
func ValidateURL(rawURL string) bool {
	return postURLPattern.MatchString(rawURL)
}

// NormalizeURL strips query parameters and fragments, forces the
// www.reddit.com host, and ensures a trailing slash, so the same post always
// maps to the same stored URL.
func NormalizeURL(rawURL string) (string, error) {
	if !ValidateURL(rawURL) {
		return "", InvalidURLError{URL: rawURL}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", InvalidURLError{URL: rawURL}
	}

	normalized := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}

	normalized = strings.Replace(normalized, "old.reddit.com", "www.reddit.com", 1)
	normalized = strings.Replace(normalized, "//reddit.com", "//www.reddit.com", 1)

	return normalized, nil
}

// Fetcher retrieves Reddit post payloads over the public JSON endpoint.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
	}
}

// FetchThread downloads and parses the thread behind a Reddit post URL.
func (f *Fetcher) FetchThread(ctx context.Context, rawURL string) (*Thread, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	jsonURL := strings.TrimSuffix(normalized, "/") + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, FetchError{URL: normalized, Reason: err.Error()}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, FetchError{URL: normalized, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, FetchError{URL: normalized, Reason: err.Error()}
	}

	thread, err := ParseThread(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse thread from %q: %w", normalized, err)
	}

	return thread, nil
}
