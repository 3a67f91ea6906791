package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenedRedisKeysCarryNamespaceOnce(t *testing.T) {
	b := redisBackendFor(Options{Kind: KindRedis, RedisAddr: "127.0.0.1:6379", Namespace: "edachat"})
	defer b.Close()
	s := New(b, "edachat", nil)

	assert.Equal(t, "edachat.history", b.key(s.key(historyKey)))
	assert.Equal(t, "edachat.saveHistory", b.key(s.key(preferenceKey)))
}

func TestRedisBackendNamespace(t *testing.T) {
	b := &RedisBackend{namespace: "tool"}
	assert.Equal(t, "tool:k", b.key("k"))
	assert.Equal(t, "k", (&RedisBackend{}).key("k"))
}
