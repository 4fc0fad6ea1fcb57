// Package presence tracks which users are currently online.
package presence

import (
	"context"
	"sync"
	"time"
)

// Service answers presence queries and records heartbeats.
type Service interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// Registry is an in-process Service. Entries expire after the TTL unless
// refreshed by MarkOnline.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

var _ Service = (*Registry)(nil)

// NewRegistry creates an empty registry. A zero TTL means entries never expire.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// IsOnline reports whether userID has a live entry.
func (r *Registry) IsOnline(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	seen, ok := r.lastSeen[userID]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if r.ttl > 0 && r.now().Sub(seen) > r.ttl {
		return false, nil
	}
	return true, nil
}

// MarkOnline records a heartbeat for userID.
func (r *Registry) MarkOnline(_ context.Context, userID string) error {
	r.mu.Lock()
	r.lastSeen[userID] = r.now()
	r.mu.Unlock()
	return nil
}

// MarkOffline removes userID.
func (r *Registry) MarkOffline(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.lastSeen, userID)
	r.mu.Unlock()
	return nil
}
