package bihash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityHash(k uint64) uint64 { return k }

func TestTableSetGetDelete(t *testing.T) {
	tbl := New[uint64, string](4, identityHash)

	_, ok := tbl.Get(42)
	assert.False(t, ok)

	tbl.Set(42, "hello")
	v, ok := tbl.Get(42)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	tbl.Set(42, "overwritten")
	v, ok = tbl.Get(42)
	require.True(t, ok)
	assert.Equal(t, "overwritten", v)

	assert.True(t, tbl.Delete(42))
	assert.False(t, tbl.Delete(42))
	_, ok = tbl.Get(42)
	assert.False(t, ok)
}

func TestTableLenAndClear(t *testing.T) {
	tbl := New[uint64, int](8, identityHash)
	for i := uint64(0); i < 20; i++ {
		tbl.Set(i, int(i))
	}
	assert.Equal(t, 20, tbl.Len())

	tbl.Clear()
	assert.Equal(t, 0, tbl.Len())
}

func TestWalkBucketVisitsOnlyItsShard(t *testing.T) {
	tbl := New[uint64, int](4, identityHash)
	for i := uint64(0); i < 16; i++ {
		tbl.Set(i, int(i))
	}

	visited := map[uint64]int{}
	for b := 0; b < tbl.NumBuckets(); b++ {
		tbl.WalkBucket(b, func(k uint64, v int) bool {
			assert.Equal(t, int(k%4), b)
			visited[k] = v
			return true
		})
	}
	assert.Len(t, visited, 16)
}

func TestMutateBucketDeleteAndSet(t *testing.T) {
	tbl := New[uint64, int](1, identityHash)
	tbl.Set(1, 10)
	tbl.Set(2, 20)
	tbl.Set(3, 30)

	tbl.MutateBucket(0, func(k uint64, v int, set func(int), del func()) {
		switch k {
		case 1:
			del()
		case 2:
			set(200)
		}
	})

	_, ok := tbl.Get(1)
	assert.False(t, ok)
	v, ok := tbl.Get(2)
	require.True(t, ok)
	assert.Equal(t, 200, v)
	v, ok = tbl.Get(3)
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestWalkBucketStopsEarly(t *testing.T) {
	tbl := New[uint64, int](1, identityHash)
	for i := uint64(0); i < 10; i++ {
		tbl.Set(i, int(i))
	}

	count := 0
	tbl.WalkBucket(0, func(k uint64, v int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}
