package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/epoch8/smartfeed/feed/session"
)

// Engine evaluates a parsed feed tree against host-registered fetchers.
// It is the package's single public entry point (spec.md §1, §4.1): hosts
// parse a config once and call GetPage per request.
type Engine struct {
	Config   *Config
	Fetchers Fetchers
	Redis    session.Client
}

// New wires a parsed config, the host's fetcher registry, and an optional
// Redis client (required only if the tree contains a merger_view_session
// node) into an Engine.
func New(config *Config, fetchers Fetchers, redisClient session.Client) *Engine {
	return &Engine{Config: config, Fetchers: fetchers, Redis: redisClient}
}

// GetPage evaluates the whole tree for one page, for one user, on top of
// the given cursor. It stamps the context logger (if any) with a
// request-scoped correlation id before recursing, mirroring the teacher's
// request-id middleware pattern, then recurses through Config.Feed.
func (e *Engine) GetPage(ctx context.Context, userID any, limit int, cursor Cursor, extra map[string]any) (PageResult, error) {
	if e.Config == nil || e.Config.Feed == nil {
		return PageResult{}, fmt.Errorf("%w: engine has no parsed config", ErrConfigInvalid)
	}
	if limit < 0 {
		return PageResult{}, fmt.Errorf("%w: limit must not be negative", ErrConfigInvalid)
	}
	if cursor == nil {
		cursor = Cursor{}
	}
	if extra == nil {
		extra = map[string]any{}
	}

	requestID := uuid.NewString()
	ctx = withRequestID(ctx, requestID)

	if logger := loggerFromContext(ctx); logger != nil {
		logger.Debug().
			Str("request_id", requestID).
			Interface("user_id", userID).
			Int("limit", limit).
			Msg("evaluating feed page")
	}

	result, err := e.Config.Feed.GetData(ctx, e.Fetchers, userID, limit, cursor, e.Redis, extra)
	if err != nil {
		if logger := loggerFromContext(ctx); logger != nil {
			logger.Error().Err(err).Str("request_id", requestID).Msg("feed evaluation failed")
		}
		return PageResult{}, err
	}

	result.Data = clampLimit(result.Data, limit)
	return result, nil
}

// withRequestID stamps logger (if the context carries one) with a
// request_id field, the same per-request correlation pattern as the
// teacher's HTTP middleware.
func withRequestID(ctx context.Context, requestID string) context.Context {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled && logger == zerolog.DefaultContextLogger {
		return ctx
	}
	withID := logger.With().Str("request_id", requestID).Logger()
	return withID.WithContext(ctx)
}
