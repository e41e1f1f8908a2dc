// Package memory provides the in-memory key-value store.
//
// The store is a single map behind a single mutex. Every Get and Set takes
// the lock for exactly one map access and never across I/O, so the mutex is
// the only point of contention between connections.
//
// Poisoning:
//
// A panic that unwinds through a critical section leaves the store poisoned.
// The panic continues up the caller's stack; later operations on any
// goroutine fail fast with ErrLockPoisoned until ClearPoison is called.
package memory
