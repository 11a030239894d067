package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-courses/internal/ai"
	"github.com/p-n-ai/pai-courses/internal/course"
	"github.com/p-n-ai/pai-courses/internal/events"
	"github.com/p-n-ai/pai-courses/internal/httpapi"
	"github.com/p-n-ai/pai-courses/internal/media"
	"github.com/p-n-ai/pai-courses/internal/pipeline"
	"github.com/p-n-ai/pai-courses/internal/platform/cache"
	"github.com/p-n-ai/pai-courses/internal/platform/config"
	"github.com/p-n-ai/pai-courses/internal/platform/database"
	"github.com/p-n-ai/pai-courses/internal/platform/docstore"
	"github.com/p-n-ai/pai-courses/internal/platform/rotation"
	"github.com/p-n-ai/pai-courses/internal/prompts"
)

const hubBuffer = 32

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config) error {
	ready := map[string]httpapi.Checker{}

	var rdb *redis.Client
	if cfg.Cache.URL != "" {
		c, err := cache.Open(ctx, cfg.Cache.URL)
		if err != nil {
			return err
		}
		defer c.Close()
		rdb = c.Client
		ready["cache"] = c.HealthCheck
	}
	counter := func(key string) rotation.Counter {
		if rdb != nil {
			return rotation.NewRedisCounter(rdb, key)
		}
		return rotation.NewLocal()
	}

	completer, err := buildCompleter(ctx, cfg.AI, counter("ai"))
	if err != nil {
		return err
	}
	ready["ai"] = completer.HealthCheck

	var budget ai.BudgetChecker = ai.NewInMemoryBudget(cfg.AI.DailyTokenBudget)
	if rdb != nil {
		budget = ai.NewRedisBudget(rdb, cfg.AI.DailyTokenBudget)
	}

	youtube, err := media.NewYouTubeSearcher(ctx, cfg.Media.YouTubeAPIKeys,
		media.WithYouTubeCounter(counter("youtube")),
		media.WithMaxResults(int64(cfg.Media.YouTubeMaxResults)),
	)
	if err != nil {
		return err
	}
	var videos media.Searcher = youtube
	if rdb != nil {
		videos = media.NewCachedSearcher(youtube, media.NewRedisCache(rdb), cfg.Media.SearchCacheTTL)
	}

	var thumbnails pipeline.Thumbnailer
	if len(cfg.Media.PexelsAPIKeys) > 0 {
		thumbnails = media.NewThumbnailFetcher(cfg.Media.PexelsAPIKeys, media.WithThumbnailCounter(counter("pexels")))
	}

	var store course.Store = course.NewMemoryStore()
	if cfg.DocStore.URI != "" {
		ds, err := docstore.Open(ctx, cfg.DocStore.URI, cfg.DocStore.Database)
		if err != nil {
			return err
		}
		defer ds.Close(context.WithoutCancel(ctx))
		mongoStore := course.NewMongoStore(ds.DB)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return err
		}
		store = mongoStore
		ready["docstore"] = ds.HealthCheck
	} else {
		slog.Warn("no docstore configured, courses are kept in memory")
	}

	hub := events.NewHub(hubBuffer)
	eventLog := events.Multi{hub}
	var history httpapi.HistoryLister
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		pg := events.NewPostgres(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		eventLog = append(eventLog, pg)
		history = pg
		ready["database"] = db.HealthCheck
	}

	catalog, err := prompts.Load(cfg.Prompts.Dir)
	if err != nil {
		return err
	}

	pcfg := pipeline.Config{
		AI:         completer,
		Prompts:    catalog,
		Store:      store,
		Videos:     videos,
		Thumbnails: thumbnails,
		Budget:     budget,
		Events:     eventLog,
	}
	svc, err := pipeline.NewService(pcfg)
	if err != nil {
		return err
	}

	// Catalog builds are operator work and are not charged to a learner.
	bulkCfg := pcfg
	bulkCfg.Budget = nil
	bulk := pipeline.NewBulk(bulkCfg, store, pipeline.WithConcurrency(cfg.Bulk.Concurrency))

	handler := httpapi.NewRouter(httpapi.Config{
		Courses:        svc,
		Bulk:           bulk,
		Progress:       hub,
		History:        history,
		Ready:          ready,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "providers", completer.Size())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildCompleter registers one provider per configured credential. The
// router rotates across all of them.
func buildCompleter(ctx context.Context, cfg config.AIConfig, counter rotation.Counter) (*ai.Router, error) {
	router := ai.NewRouter(ai.WithCounter(counter))

	for i, key := range cfg.OpenAI.APIKeys {
		router.Register(credentialName("openai", i), ai.NewOpenAIProvider(key, ai.WithDefaultModel(cfg.OpenAI.Model)))
	}
	for i, key := range cfg.DeepSeek.APIKeys {
		router.Register(credentialName("deepseek", i), ai.NewDeepSeekProvider(key, ai.WithDefaultModel(cfg.DeepSeek.Model)))
	}
	for i, key := range cfg.OpenRouter.APIKeys {
		router.Register(credentialName("openrouter", i), ai.NewOpenRouterProvider(key, ai.WithDefaultModel(cfg.OpenRouter.Model)))
	}
	for i, key := range cfg.Anthropic.APIKeys {
		p, err := ai.NewAnthropicProvider(key, ai.WithAnthropicModel(cfg.Anthropic.Model))
		if err != nil {
			return nil, err
		}
		router.Register(credentialName("anthropic", i), p)
	}
	for i, key := range cfg.Google.APIKeys {
		p, err := ai.NewGoogleProvider(ctx, key, ai.WithGoogleModel(cfg.Google.Model))
		if err != nil {
			return nil, err
		}
		router.Register(credentialName("google", i), p)
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithDefaultModel(cfg.Ollama.Model)))
	}

	if !router.HasProvider() {
		return nil, fmt.Errorf("no AI provider configured")
	}
	return router, nil
}

func credentialName(provider string, i int) string {
	return fmt.Sprintf("%s-%d", provider, i+1)
}
