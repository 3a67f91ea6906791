// Package storage persists the conversation history and the save-history
// preference in a durable key-value backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by a Backend when a key has no value.
	ErrNotFound = errors.New("key not found")
	// ErrCorrupt marks stored data that cannot be decoded.
	ErrCorrupt = errors.New("corrupt persisted data")
)

// Backend is a durable string-keyed byte store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind      string
	DataDir   string
	RedisAddr string
	RedisDB   int
	// Namespace prefixes every key. Store applies it, so backends opened
	// here store keys as given.
	Namespace string
}

// Open constructs the backend named by opt.Kind.
func Open(ctx context.Context, opt Options) (Backend, error) {
	switch opt.Kind {
	case "", KindFile:
		return NewFileBackend(filepath.Join(opt.DataDir, "storage.json"))
	case KindSQLite:
		return OpenSQLite(ctx, filepath.Join(opt.DataDir, "edachat.db"))
	case KindRedis:
		b := redisBackendFor(opt)
		if err := b.client.Ping(ctx).Err(); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opt.RedisAddr, err)
		}
		return b, nil
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opt.Kind)
	}
}

// redisBackendFor builds an unconnected redis backend. Store already
// namespaces its keys, so the backend adds no prefix of its own.
func redisBackendFor(opt Options) *RedisBackend {
	client := redis.NewClient(&redis.Options{Addr: opt.RedisAddr, DB: opt.RedisDB})
	return NewRedisBackend(client, "")
}
