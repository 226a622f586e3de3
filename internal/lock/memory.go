package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	requestID string
	expiresAt time.Time
}

// MemoryLocker is a single-process Locker.
type MemoryLocker struct {
	settings
	mu    sync.Mutex
	locks map[string]memoryEntry
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker(opts ...Option) *MemoryLocker {
	return &MemoryLocker{settings: newSettings(opts), locks: make(map[string]memoryEntry)}
}

// Acquire grants the lock unless another unexpired request holds it.
func (m *MemoryLocker) Acquire(ctx context.Context, userID, requestID string, ttlSeconds int) (Result, error) {
	now := m.now()
	expires := now.Add(m.ttl(ttlSeconds))

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[userID]; ok && cur.expiresAt.After(now) {
		return busy(cur.requestID, cur.expiresAt, now), nil
	}
	m.locks[userID] = memoryEntry{requestID: requestID, expiresAt: expires}
	return acquired(expires), nil
}

// Extend pushes the expiry of a lock held by requestID.
func (m *MemoryLocker) Extend(ctx context.Context, userID, requestID string, ttlSeconds int) error {
	expires := m.now().Add(m.ttl(ttlSeconds))
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[userID]; ok && cur.requestID == requestID {
		cur.expiresAt = expires
		m.locks[userID] = cur
	}
	return nil
}

// Release drops a lock held by requestID.
func (m *MemoryLocker) Release(ctx context.Context, userID, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[userID]; ok && cur.requestID == requestID {
		delete(m.locks, userID)
	}
	return nil
}
