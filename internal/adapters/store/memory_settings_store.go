package store

import (
	"context"
	"encoding/json"
	"sync"
)

// In-memory settings store used by tests and throwaway local runs.
type MemorySettingsStore struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

func NewMemorySettingsStore(initial map[string]string) *MemorySettingsStore {
	m := make(map[string]json.RawMessage, len(initial))
	for k, v := range initial {
		m[k] = json.RawMessage(v)
	}
	return &MemorySettingsStore{m: m}
}

func (s *MemorySettingsStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := s.m[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (s *MemorySettingsStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.m[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}
