package intent

import "sync"

// InMemoryStore is a thread-safe in-memory implementation of Store
type InMemoryStore struct {
	mu     sync.Mutex
	values map[Key]string
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory intent store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[Key]string),
	}
}

func (s *InMemoryStore) Store(key Key, value string) bool {
	if !acceptable(key, value) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return true
}

func (s *InMemoryStore) TakeAndClear(key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	delete(s.values, key)
	if !ok || !acceptable(key, value) {
		return "", false
	}
	return value, true
}
