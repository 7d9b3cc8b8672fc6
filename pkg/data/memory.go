package data

import (
	"context"
	"sync"
)

// MemoryBackend keeps the blob in memory. Nothing survives the process.
type MemoryBackend struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Init(context.Context) error { return nil }

func (m *MemoryBackend) Read(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, nil
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryBackend) Write(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
