package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type key int

const CorrelationKey key = 0

const correlationHeader = "X-Correlation-ID"

// CorrelationID tags each request with an id that follows it through the
// pipeline, including across the queue handoff to the ingest worker. Callers
// may supply their own id; otherwise one is minted.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set(correlationHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		// The context handler stamps the correlation id on the record.
		slog.InfoContext(ctx, "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return "unknown"
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}
