package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "watch/requestctx/logger"
	traceKey  contextKey = "watch/requestctx/trace"
	actorKey  contextKey = "watch/requestctx/actor"
)

var noop = zap.NewNop()

// TraceInfo is the trace metadata extracted from the inbound request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores a request scoped logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the request scoped logger, or a no-op logger when none was stored.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noop
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noop
}

// WithTrace stores trace metadata.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey, info)
}

// Trace returns the stored trace metadata.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

// TraceID returns the trace id or an empty string.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithActor records the authenticated user id so request logs can reference it
// without reaching into the auth package.
func WithActor(ctx context.Context, uid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if holder, ok := ctx.Value(actorKey).(*actorHolder); ok && holder != nil {
		holder.uid = uid
		return ctx
	}
	return context.WithValue(ctx, actorKey, &actorHolder{uid: uid})
}

// WithActorSlot prepares a mutable slot so middleware that runs before
// authentication can read the actor after the handler returns.
func WithActorSlot(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, &actorHolder{})
}

// Actor returns the recorded user id, if any.
func Actor(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if holder, ok := ctx.Value(actorKey).(*actorHolder); ok && holder != nil {
		return holder.uid
	}
	return ""
}

type actorHolder struct {
	uid string
}

// NoopLogger is the shared logger returned when no request logger is stored.
func NoopLogger() *zap.Logger { return noop }
