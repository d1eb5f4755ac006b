// Package sync provides per-key locking for in-process state such as the
// memory privacy ledger.
package sync

import (
	"math/bits"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the shard count used by NewShardedMutex.
const DefaultShards = 64

// ShardedMutex serializes callers that share a key while letting most other
// keys proceed in parallel. Keys hash onto a fixed, power-of-two set of
// mutexes, so two distinct keys may occasionally share a shard.
type ShardedMutex struct {
	mask   uint64
	shards []paddedMutex
}

// paddedMutex keeps neighbouring shards off the same cache line.
type paddedMutex struct {
	sync.Mutex
	_ [56]byte
}

func NewShardedMutex() *ShardedMutex {
	return NewShardedMutexN(DefaultShards)
}

// NewShardedMutexN rounds n up to the next power of two, minimum 1.
func NewShardedMutexN(n int) *ShardedMutex {
	size := 1
	if n > 1 {
		size = 1 << bits.Len(uint(n-1))
	}
	return &ShardedMutex{mask: uint64(size - 1), shards: make([]paddedMutex, size)}
}

func (m *ShardedMutex) shard(key string) *paddedMutex {
	return &m.shards[xxhash.Sum64String(key)&m.mask]
}

func (m *ShardedMutex) Lock(key string)   { m.shard(key).Lock() }
func (m *ShardedMutex) Unlock(key string) { m.shard(key).Unlock() }

// Do runs fn while holding key's shard.
func (m *ShardedMutex) Do(key string, fn func()) {
	s := m.shard(key)
	s.Lock()
	defer s.Unlock()
	fn()
}

// Shards reports the shard count after rounding.
func (m *ShardedMutex) Shards() int { return len(m.shards) }
