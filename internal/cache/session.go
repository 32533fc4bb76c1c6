package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/otcheredev/imaging-gateway/internal/models"
	"github.com/otcheredev/imaging-gateway/pkg/clock"
)

// ErrSessionNotFound is returned for unknown or expired sessions
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps imaging sessions in the cache until they expire
type SessionStore struct {
	cache Cache
	clock clock.Clock
}

// NewSessionStore creates a session store on top of c
func NewSessionStore(c Cache, clk clock.Clock) *SessionStore {
	return &SessionStore{cache: c, clock: clk}
}

// Save stores the session until its ExpiresAt
func (s *SessionStore) Save(ctx context.Context, session *models.ImagingSession) error {
	ttl := session.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.cache.Set(ctx, SessionKey(session.ID), data, ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get loads a live session
func (s *SessionStore) Get(ctx context.Context, id string) (*models.ImagingSession, error) {
	data, err := s.cache.Get(ctx, SessionKey(id))
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.ImagingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if !session.ExpiresAt.After(s.clock.Now()) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// AppendAction adds an entry to the session's action log. Entries are never
// rewritten or removed. A session is owned by one viewing interaction, so
// appends are not expected to race.
func (s *SessionStore) AppendAction(ctx context.Context, id string, action models.SessionAction) (*models.ImagingSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if action.Timestamp.IsZero() {
		action.Timestamp = s.clock.Now()
	}
	session.Actions = append(session.Actions, action)

	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
