package gateway

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// newRequestID generates a per-request identifier used only for log
// correlation; it plays no role in signature verification.
func newRequestID() string {
	return uuid.NewString()
}

// withRequestID attaches id to ctx for retrieval by requestIDFrom.
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestIDFrom returns the request ID previously attached with
// withRequestID, or "" if none is present.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
