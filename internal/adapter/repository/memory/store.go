package memory

import (
	"context"
	"sync"
)

// Store keeps a value in process memory.
type Store[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewStore creates a Store holding initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

func (s *Store[T]) Load(_ context.Context) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, nil
}

func (s *Store[T]) Replace(_ context.Context, value T) error {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	return nil
}
