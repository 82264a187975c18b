package httpserver

import (
	"context"
	"time"
)

type contextKey string

const contextKeyStartTime contextKey = "start_time"

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, t)
}

func startTimeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyStartTime).(time.Time); ok {
		return t
	}
	return time.Now()
}
