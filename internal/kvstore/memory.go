package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and by callers that want an
// ephemeral account (nothing survives a restart).
//
// The error fields inject failures for exercising the store's error paths:
// a non-nil GetErr makes every Get fail, and so on. This mirrors how the
// service-layer tests fake their repository.
type Memory struct {
	mu   sync.Mutex
	data map[string]string

	GetErr    error
	SetErr    error
	RemoveErr error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports how many keys are stored. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
