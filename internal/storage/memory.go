package storage

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps keys in process memory. Nothing survives the process;
// it backs --ephemeral runs and tests.
type MemoryBackend struct {
	c *gocache.Cache
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{c: gocache.New(gocache.NoExpiration, 0)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	src := v.([]byte)
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (b *MemoryBackend) Put(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	b.c.Set(key, cp, gocache.NoExpiration)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.c.Delete(key)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
