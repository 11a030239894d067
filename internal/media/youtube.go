package media

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/p-n-ai/pai-courses/internal/platform/rotation"
)

const defaultMaxResults = 10

// YouTubeSearcher searches the YouTube Data API with a pool of API keys. Each
// call uses the next key in rotation; failures are logged and yield no videos.
type YouTubeSearcher struct {
	svc        *youtube.Service
	keys       []string
	counter    rotation.Counter
	maxResults int64
}

type youtubeConfig struct {
	endpoint   string
	httpClient *http.Client
	counter    rotation.Counter
	maxResults int64
}

// YouTubeOption configures a YouTubeSearcher.
type YouTubeOption func(*youtubeConfig)

// WithYouTubeEndpoint overrides the API endpoint (for testing).
func WithYouTubeEndpoint(url string) YouTubeOption {
	return func(c *youtubeConfig) { c.endpoint = url }
}

// WithYouTubeHTTPClient sets the HTTP client.
func WithYouTubeHTTPClient(client *http.Client) YouTubeOption {
	return func(c *youtubeConfig) { c.httpClient = client }
}

// WithYouTubeCounter sets the key rotation counter.
func WithYouTubeCounter(counter rotation.Counter) YouTubeOption {
	return func(c *youtubeConfig) { c.counter = counter }
}

// WithMaxResults caps the candidates returned per search.
func WithMaxResults(n int64) YouTubeOption {
	return func(c *youtubeConfig) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// NewYouTubeSearcher creates a searcher over the given API keys.
func NewYouTubeSearcher(ctx context.Context, keys []string, opts ...YouTubeOption) (*YouTubeSearcher, error) {
	cfg := youtubeConfig{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		counter:    rotation.NewLocal(),
		maxResults: defaultMaxResults,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// The key travels per call so one service can rotate across the pool.
	clientOpts := []option.ClientOption{option.WithHTTPClient(cfg.httpClient)}
	if cfg.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.endpoint))
	}
	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &YouTubeSearcher{
		svc:        svc,
		keys:       keys,
		counter:    cfg.counter,
		maxResults: cfg.maxResults,
	}, nil
}

func (s *YouTubeSearcher) Search(ctx context.Context, query string) []Video {
	key, idx, ok := rotation.Pick(ctx, s.counter, s.keys)
	if !ok {
		slog.Warn("youtube search skipped, no API keys configured", "query", query)
		return nil
	}

	resp, err := s.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(s.maxResults).
		Context(ctx).
		Do(googleapi.QueryParameter("key", key))
	if err != nil {
		slog.Warn("youtube search failed",
			"query", query,
			"key_index", idx,
			"error", err,
		)
		return nil
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, Video{
			ID:           item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			Description:  html.UnescapeString(item.Snippet.Description),
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: html.UnescapeString(item.Snippet.ChannelTitle),
		})
	}
	return videos
}
