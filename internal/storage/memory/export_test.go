package memory

// SetInLockHook installs fn to run inside every critical section.
func (s *Store) SetInLockHook(fn func(op string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inLock = fn
}
