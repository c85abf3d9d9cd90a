package feed

import (
	"context"

	"github.com/rs/zerolog"
)

// loggerFromContext returns the zerolog.Logger carried on ctx via
// zerolog's own context integration (logger.WithContext(ctx)), falling
// back to the disabled logger if none was attached — mirroring teacher's
// convention of a request-scoped logger threaded through context
// (internal/api/middleware.go), adapted to zerolog's native
// Ctx()/WithContext() pair instead of a bespoke context key.
func loggerFromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithLogger returns a context carrying logger, retrievable by every node
// during evaluation for structured warn/error logging alongside returned
// errors (SPEC_FULL.md §7).
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}
