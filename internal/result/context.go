package result

import (
	"context"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id that NewMetadata picks up
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id carried by ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewMetadata stamps the request id from ctx and the given time
func NewMetadata(ctx context.Context, now time.Time, archiveID string) *Metadata {
	return &Metadata{
		RequestID: RequestID(ctx),
		Timestamp: now,
		ArchiveID: archiveID,
	}
}
