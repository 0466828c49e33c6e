package types

import (
	"context"
	"time"
)

type contextKey string

const (
	runIDKey  contextKey = "run_id"
	loggerKey contextKey = "logger"
)

// WithRunID stores the identifier of the current scheduler or dispatcher run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run ID from the context, or "" when unset.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the Logger from the context, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}

type referenceTimeKey struct{}

// WithReferenceTime pins "now" for the run carried by ctx. Used for manual
// backfills where a trigger supplies reference_time.
func WithReferenceTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, referenceTimeKey{}, t.UTC())
}

// ReferenceTime returns the pinned instant carried by ctx, if any.
func ReferenceTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(referenceTimeKey{}).(time.Time)
	return t, ok
}

// Now returns the reference time carried by ctx, or clock.Now().
func Now(ctx context.Context, clock Clock) time.Time {
	if t, ok := ReferenceTime(ctx); ok {
		return t
	}
	return clock.Now()
}
