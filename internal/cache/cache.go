package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
	Close() error
}

// StudyKey generates the cache key for a study resource on an archive
func StudyKey(archiveID, studyUID, seriesUID, suffix string) string {
	parts := []string{"study", archiveID, studyUID}
	if seriesUID != "" {
		parts = append(parts, seriesUID)
	}
	return strings.Join(append(parts, suffix), ":")
}

// SessionKey generates the cache key for an imaging session
func SessionKey(sessionID string) string {
	return "session:" + sessionID
}
