package prefs

import (
	"context"
	"encoding/base64"
	"sync"
)

// Store 用户本地偏好的键值存储，跨重启保留
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// UserKey namespaces name under identity. The identity is base64url encoded so
// the key only uses characters every backend accepts.
func UserKey(identity, name string) string {
	return "user." + base64.RawURLEncoding.EncodeToString([]byte(identity)) + "." + name
}

type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
