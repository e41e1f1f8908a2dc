// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread over shards by their murmur3 hash, and each shard is
// guarded by its own RWMutex:
//
//	m := cmap.New[*Conn]()
//	m.Set(id, conn)
//	c, ok := m.Get(id)
//
// Range and Count lock one shard at a time, so they observe a view that
// may mix states from before and after concurrent writes.
package cmap
