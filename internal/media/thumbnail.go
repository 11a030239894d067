package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/p-n-ai/pai-courses/internal/platform/rotation"
)

const defaultPexelsBaseURL = "https://api.pexels.com/v1"

// ThumbnailFetcher finds landscape images for a course topic on Pexels.
type ThumbnailFetcher struct {
	keys    []string
	counter rotation.Counter
	baseURL string
	client  *http.Client
}

// ThumbnailOption configures a ThumbnailFetcher.
type ThumbnailOption func(*ThumbnailFetcher)

// WithPexelsBaseURL sets the base URL (for testing).
func WithPexelsBaseURL(url string) ThumbnailOption {
	return func(f *ThumbnailFetcher) { f.baseURL = url }
}

// WithThumbnailCounter sets the key rotation counter.
func WithThumbnailCounter(counter rotation.Counter) ThumbnailOption {
	return func(f *ThumbnailFetcher) { f.counter = counter }
}

// NewThumbnailFetcher creates a fetcher over the given Pexels API keys.
func NewThumbnailFetcher(keys []string, opts ...ThumbnailOption) *ThumbnailFetcher {
	f := &ThumbnailFetcher{
		keys:    keys,
		counter: rotation.NewLocal(),
		baseURL: defaultPexelsBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type pexelsResponse struct {
	Photos []struct {
		Src struct {
			Landscape string `json:"landscape"`
			Large     string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search returns landscape image URLs for the query, best match first.
func (f *ThumbnailFetcher) Search(ctx context.Context, query string, limit int) ([]string, error) {
	key, _, ok := rotation.Pick(ctx, f.counter, f.keys)
	if !ok {
		return nil, fmt.Errorf("no pexels API keys configured")
	}
	if limit <= 0 {
		limit = 1
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("orientation", "landscape")
	q.Set("per_page", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", key)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels api error (status %d): %s", resp.StatusCode, string(body))
	}

	var pr pexelsResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	urls := make([]string, 0, len(pr.Photos))
	for _, p := range pr.Photos {
		switch {
		case p.Src.Landscape != "":
			urls = append(urls, p.Src.Landscape)
		case p.Src.Large != "":
			urls = append(urls, p.Src.Large)
		}
	}
	return urls, nil
}

// Fetch returns the best thumbnail URL for a topic, or "" when none is found.
func (f *ThumbnailFetcher) Fetch(ctx context.Context, topic string) (string, error) {
	urls, err := f.Search(ctx, topic, 1)
	if err != nil {
		return "", err
	}
	if len(urls) == 0 {
		return "", nil
	}
	return urls[0], nil
}
