// Package bihash implements the bucketized concurrent hash table shared by
// the L2-FIB and the transport endpoint registry (spec sections 4.1 and
// 4.3). Both tables are "a bounded-memory bucketized hash table": reads
// must never observe a torn key/value pair, and a background scanner must
// be able to walk every bucket while yielding between them without holding
// a table-wide lock.
//
// The reference implementation (VPP's clib_bihash) gets this from a
// lock-free open-addressed scheme backed by a raw memory arena. Go has no
// portable equivalent without unsafe pointer arithmetic, so this
// implementation shards the table into nBuckets independent
// mutex-guarded maps: a lookup only ever contends with writers touching
// the same bucket, and a single bucket's map never presents a torn KV pair
// to a concurrent reader because the shard lock serializes access to it.
package bihash

import "sync"

// Hasher maps a key to a bucket index. Callers own bucket distribution;
// this package only owns synchronization and walk order.
type Hasher[K comparable] func(key K) uint64

// Table is a fixed-bucket-count concurrent map from K to V.
type Table[K comparable, V any] struct {
	hash    Hasher[K]
	buckets []*bucket[K, V]
}

type bucket[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New creates a table with nBuckets independent shards. nBuckets should be
// a power of two per spec section 4.1's "num-buckets (power of two)", but
// any positive value works.
func New[K comparable, V any](nBuckets int, hash Hasher[K]) *Table[K, V] {
	if nBuckets <= 0 {
		nBuckets = 1
	}
	t := &Table[K, V]{
		hash:    hash,
		buckets: make([]*bucket[K, V], nBuckets),
	}
	for i := range t.buckets {
		t.buckets[i] = &bucket[K, V]{m: make(map[K]V)}
	}
	return t
}

func (t *Table[K, V]) bucketFor(key K) *bucket[K, V] {
	idx := t.hash(key) % uint64(len(t.buckets))
	return t.buckets[idx]
}

// Get performs a wait-free-equivalent read: it only ever blocks behind a
// writer to the same bucket, never the whole table.
func (t *Table[K, V]) Get(key K) (V, bool) {
	b := t.bucketFor(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok
}

// Set inserts or overwrites key's value. Insertion is idempotent, matching
// spec section 4.1's "overwrites are allowed".
func (t *Table[K, V]) Set(key K, value V) {
	b := t.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = value
}

// Delete removes key, reporting whether it was present.
func (t *Table[K, V]) Delete(key K) bool {
	b := t.bucketFor(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.m[key]; !ok {
		return false
	}
	delete(b.m, key)
	return true
}

// Len returns the total number of entries across all buckets. Intended
// for diagnostics, not the hot path: it takes every shard's read lock in
// turn.
func (t *Table[K, V]) Len() int {
	n := 0
	for _, b := range t.buckets {
		b.mu.RLock()
		n += len(b.m)
		b.mu.RUnlock()
	}
	return n
}

// Clear atomically reinitializes every bucket to empty: every bucket's
// write lock is held before any bucket is emptied, so no reader observes
// a partly cleared table.
func (t *Table[K, V]) Clear() {
	for _, b := range t.buckets {
		b.mu.Lock()
	}
	for _, b := range t.buckets {
		b.m = make(map[K]V)
	}
	for _, b := range t.buckets {
		b.mu.Unlock()
	}
}

// NumBuckets returns the bucket count the table was constructed with, so a
// scanner can walk bucket indices directly.
func (t *Table[K, V]) NumBuckets() int {
	return len(t.buckets)
}

// WalkBucket calls fn for every (key, value) pair currently in bucket idx,
// holding that bucket's write lock for the duration. The lock is not
// reentrant, so fn must not call back into the table for the same bucket.
// fn returning false stops the walk early.
//
// The L2-FIB's Dump walks the table one bucket at a time with it, and the
// ager does the same with MutateBucket — never holding more than one
// bucket's lock at a time, so hot-path lookups against other buckets are
// never blocked by a walk in progress.
func (t *Table[K, V]) WalkBucket(idx int, fn func(key K, value V) (keepGoing bool)) {
	b := t.buckets[idx]
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.m {
		if !fn(k, v) {
			return
		}
	}
}

// MutateBucket calls fn for every (key, value) pair in bucket idx, under
// that bucket's write lock, allowing fn to overwrite or delete entries via
// the supplied setter/deleter closures. Used by the ager to update or age
// out entries in place during a single walk.
func (t *Table[K, V]) MutateBucket(idx int, fn func(key K, value V, set func(V), del func())) {
	b := t.buckets[idx]
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.m {
		fn(k, v,
			func(nv V) { b.m[k] = nv },
			func() { delete(b.m, k) },
		)
	}
}

// BucketOccupied reports whether bucket idx currently holds any entries,
// without taking every shard's lock like Len does.
func (t *Table[K, V]) BucketOccupied(idx int) bool {
	b := t.buckets[idx]
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m) > 0
}
