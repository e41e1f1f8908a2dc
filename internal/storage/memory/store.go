package memory

import (
	"errors"
	"sync"
)

// ErrLockPoisoned is returned by every operation after a panic escaped a
// critical section.
var ErrLockPoisoned = errors.New("memory: store lock poisoned")

// Store maps string keys to byte values.
type Store struct {
	mu       sync.Mutex
	data     map[string][]byte
	poisoned bool

	// inLock runs inside every critical section. Tests use it to panic
	// while the lock is held.
	inLock func(op string)
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
// The boolean is false when the key was never set.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var (
		val []byte
		ok  bool
	)
	err := s.critical("get", func() {
		var stored []byte
		stored, ok = s.data[key]
		if ok {
			val = make([]byte, len(stored))
			copy(val, stored)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return val, ok, nil
}

// Set stores value under key, replacing any previous value.
// The store keeps value; callers must not modify it afterwards.
func (s *Store) Set(key string, value []byte) error {
	return s.critical("set", func() {
		s.data[key] = value
	})
}

// Len returns the number of keys. It keeps working on a poisoned store so
// metrics remain available.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Poisoned reports whether a panic escaped a critical section.
func (s *Store) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}

// ClearPoison makes a poisoned store usable again. Data written before the
// panic is kept as is.
func (s *Store) ClearPoison() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poisoned = false
}

// critical runs fn with the lock held. The lock is released on every path;
// a panic from fn poisons the store and is re-raised.
func (s *Store) critical(op string, fn func()) error {
	s.mu.Lock()
	if s.poisoned {
		s.mu.Unlock()
		return ErrLockPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			s.mu.Unlock()
			panic(r)
		}
		s.mu.Unlock()
	}()

	if s.inLock != nil {
		s.inLock(op)
	}
	fn()
	return nil
}
