package storage

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Memory keeps files in process memory. It serves development setups
// without a bucket and tests.
type Memory struct {
	files   map[string]memFile
	baseURL string
	maxSize int64
	mu      sync.RWMutex
}

type memFile struct {
	contentType string
	data        []byte
}

// NewMemory creates an in-memory storage whose URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{files: make(map[string]memFile), baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (m *Memory) Put(_ context.Context, r io.Reader, _ int64, opts ...Option) (*FileInfo, error) {
	p, err := prepare(r, m.maxSize, opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.files[p.key] = memFile{contentType: p.contentType, data: p.data}
	m.mu.Unlock()
	return &FileInfo{Key: p.key, ContentType: p.contentType, Size: int64(len(p.data))}, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[key]; !ok {
		return ErrNotFound
	}
	delete(m.files, key)
	return nil
}

func (m *Memory) URL(_ context.Context, key string, _ ...URLOption) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[key]; !ok {
		return "", ErrNotFound
	}
	return m.baseURL + "/" + key, nil
}

// Open returns the content and type of key.
func (m *Memory) Open(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key]
	return f.data, f.contentType, ok
}

var _ Storage = (*Memory)(nil)
