package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/epoch8/smartfeed/feed"
	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
	"github.com/epoch8/smartfeed/internal/config"
)

func main() {
	_ = godotenv.Load()

	configPath := "configs/config.dev.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	var writer = os.Stderr
	var logger zerolog.Logger
	if cfg.Logging.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(writer).With().Timestamp().Logger()
	}

	registry := prometheus.NewRegistry()
	feedmetrics.MustRegister(registry)
	metricsSrv := &http.Server{Addr: ":2112", Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	redisClient, cleanupRedis, err := connectRedis(cfg.Redis.URL, &logger)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer cleanupRedis()

	engine, err := buildDemoEngine(redisClient)
	if err != nil {
		log.Fatalf("failed to build demo feed: %v", err)
	}

	ctx := logger.WithContext(context.Background())
	userID := uuid.NewString()

	cursor := feed.Cursor{}
	for page := 1; page <= 3; page++ {
		result, err := engine.GetPage(ctx, userID, 6, cursor, map[string]any{"custom_view_session_key": "demo"})
		if err != nil {
			log.Fatalf("page %d: %v", page, err)
		}
		fmt.Printf("page %d: %d items, has_next_page=%v\n", page, len(result.Data), result.HasNextPage)
		for _, item := range result.Data {
			fmt.Printf("  %v\n", item)
		}
		cursor = result.NextPage
		if !result.HasNextPage {
			break
		}
	}

	fmt.Printf("\nVisit http://localhost:2112/metrics to see engine metrics\n")
	fmt.Printf("Press Ctrl+C to stop...\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error stopping metrics server")
	}
}

// connectRedis dials cfg.Redis.URL; if nothing is listening (the common
// case for a standalone demo run) it falls back to an in-process miniredis
// instance so the demo is runnable with zero external services.
func connectRedis(url string, logger *zerolog.Logger) (session.Client, func(), error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url %q: %w", url, err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		logger.Warn().Str("url", url).Msg("redis unreachable, falling back to in-process miniredis for the demo")

		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("starting miniredis: %w", err)
		}
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return session.NewRedisClient(rdb), func() { _ = rdb.Close(); mr.Close() }, nil
	}
	return session.NewRedisClient(rdb), func() { _ = rdb.Close() }, nil
}

// buildDemoEngine wires two in-memory fetchers and a three-level feed tree
// (merger_append over a pinned welcome card, a merger_percentage blend of
// "trending" and "latest" items, all wrapped in a merger_view_session so
// repeat pages come from one materialized, paginated session).
func buildDemoEngine(redisClient session.Client) (*feed.Engine, error) {
	fetchers := feed.Fetchers{
		"trending_posts": {Fn: trendingFetcher, Params: []string{"topic"}},
		"latest_posts":   {Fn: latestFetcher, Params: nil},
		"welcome_card":   {Fn: welcomeFetcher, Params: nil},
	}

	treeJSON := []byte(`{
		"version": "1",
		"feed": {
			"type": "merger_view_session",
			"merger_id": "home",
			"session_size": 30,
			"session_live_time": 1800,
			"deduplicate": true,
			"dedup_key": "id",
			"data": {
				"type": "merger_append",
				"merger_id": "home_append",
				"items": [
					{
						"type": "subfeed",
						"subfeed_id": "welcome",
						"method_name": "welcome_card"
					},
					{
						"type": "merger_percentage",
						"merger_id": "home_blend",
						"items": [
							{
								"percentage": 60,
								"data": {
									"type": "subfeed",
									"subfeed_id": "trending",
									"method_name": "trending_posts",
									"subfeed_params": {"topic": "go"}
								}
							},
							{
								"percentage": 40,
								"data": {
									"type": "subfeed",
									"subfeed_id": "latest",
									"method_name": "latest_posts"
								}
							}
						]
					}
				]
			}
		}
	}`)

	cfg, err := feed.ParseConfig(treeJSON)
	if err != nil {
		return nil, fmt.Errorf("parsing demo feed tree: %w", err)
	}

	return feed.New(cfg, fetchers, redisClient), nil
}

func welcomeFetcher(ctx context.Context, userID any, limit int, next feed.NodeCursor, params map[string]any) (feed.ClientPage, error) {
	if next.Page > 1 {
		return feed.ClientPage{Data: nil, NextPage: next, HasNextPage: false}, nil
	}
	return feed.ClientPage{
		Data:        []any{map[string]any{"id": "welcome-1", "kind": "welcome", "title": fmt.Sprintf("Hi %v", userID)}},
		NextPage:    feed.NodeCursor{Page: 2, After: nil},
		HasNextPage: false,
	}, nil
}

func trendingFetcher(ctx context.Context, userID any, limit int, next feed.NodeCursor, params map[string]any) (feed.ClientPage, error) {
	topic, _ := params["topic"].(string)
	start := (next.Page - 1) * limit
	items := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		items = append(items, map[string]any{
			"id":    fmt.Sprintf("trending-%s-%d", topic, start+i),
			"kind":  "trending",
			"topic": topic,
		})
	}
	return feed.ClientPage{
		Data:        items,
		NextPage:    feed.NodeCursor{Page: next.Page + 1, After: nil},
		HasNextPage: start+limit < 200,
	}, nil
}

func latestFetcher(ctx context.Context, userID any, limit int, next feed.NodeCursor, params map[string]any) (feed.ClientPage, error) {
	start := (next.Page - 1) * limit
	items := make([]any, 0, limit)
	for i := 0; i < limit; i++ {
		items = append(items, map[string]any{
			"id":   fmt.Sprintf("latest-%d", start+i),
			"kind": "latest",
		})
	}
	return feed.ClientPage{
		Data:        items,
		NextPage:    feed.NodeCursor{Page: next.Page + 1, After: nil},
		HasNextPage: start+limit < 200,
	}, nil
}
