package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ExtractionLock allows at most one in-flight extraction per connection.
type ExtractionLock interface {
	// TryAcquire returns ok=false when the connection is already locked.
	// release only frees the lock while this holder still owns it, so a
	// holder whose entry expired cannot free a later holder's lock.
	TryAcquire(connectionID uuid.UUID) (release func(), ok bool)
}

type extractionLock struct {
	mu   sync.Mutex
	held *cache.Cache
}

// NewExtractionLock creates an in-process lock whose entries expire after ttl,
// so a walk that never returns cannot hold a connection forever.
func NewExtractionLock(ttl time.Duration) ExtractionLock {
	return &extractionLock{held: cache.New(ttl, ttl)}
}

func (l *extractionLock) TryAcquire(connectionID uuid.UUID) (func(), bool) {
	key := connectionID.String()
	token := uuid.New()

	l.mu.Lock()
	defer l.mu.Unlock()
	// Add fails when a live entry exists.
	if err := l.held.Add(key, token, cache.DefaultExpiration); err != nil {
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}, true
}

func (l *extractionLock) release(key string, token uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.held.Get(key); ok && current.(uuid.UUID) == token {
		l.held.Delete(key)
	}
}
