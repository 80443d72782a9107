package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	url       string
	expiresAt time.Time // zero means no expiry
}

// Memory is the in-process fallback backend, selected at startup when the
// live cache is unreachable. Safe for concurrent use; never errors.
type Memory struct {
	entries map[string]entry
	mu      sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

func (c *Memory) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", nil
	}

	return e.url, nil
}

func (c *Memory) Set(_ context.Context, key, url string, ttl time.Duration) error {
	e := entry{url: url}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *Memory) Ping(_ context.Context) error {
	return nil
}
