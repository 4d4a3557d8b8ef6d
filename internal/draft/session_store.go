package draft

import (
	"context"
	"sync"
	"time"
)

type sessionEntry struct {
	draft   *Draft
	expires time.Time
}

// SessionStore is the short-lived tier. It never keeps attachments, so a
// draft recovered from here always needs the file re-attached.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{entries: make(map[string]sessionEntry), ttl: ttl, now: time.Now}
}

func (s *SessionStore) Source() string { return "session" }

// Save stores a fields-only copy and drops expired entries.
func (s *SessionStore) Save(_ context.Context, d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
	s.entries[d.ID] = sessionEntry{draft: d.withoutAttachment(), expires: now.Add(s.ttl)}
	return nil
}

func (s *SessionStore) Lookup(_ context.Context, id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(e.expires) {
		delete(s.entries, id)
		return nil, ErrNotFound
	}
	return e.draft.withoutAttachment(), nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live and not yet swept entries.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
