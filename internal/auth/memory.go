package auth

import (
	"context"
	"sync"
)

// Memory 进程内账户表
type Memory struct {
	mu     sync.RWMutex
	hashes map[string]string
}

func NewMemory() *Memory {
	return &Memory{hashes: make(map[string]string)}
}

func (m *Memory) SignUp(_ context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if err := checkPassword(password); err != nil {
		return "", err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hashes[email]; ok {
		return "", fail("The email address is already in use by another account.", nil)
	}
	m.hashes[email] = hash
	return email, nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	hash, ok := m.hashes[email]
	m.mu.RUnlock()
	if !ok {
		return "", fail("The email or password is incorrect.", nil)
	}
	if err := comparePassword(hash, password); err != nil {
		return "", err
	}
	return email, nil
}
