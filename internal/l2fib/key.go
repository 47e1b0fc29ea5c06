package l2fib

import "fmt"

// Key packs a MAC and a bridge-domain index into a single uint64, matching
// l2fib_entry_key_t's bitfield layout: the 48-bit MAC occupies the high
// bits, the 16-bit bridge-domain index the low bits, so entries sort and
// hash the way the original bihash keys do.
type Key uint64

// NewKey builds the packed key for mac within bridge domain bdIndex.
func NewKey(mac MAC, bdIndex uint16) Key {
	return Key(mac.uint48()<<16 | uint64(bdIndex))
}

// MAC extracts the packed MAC address.
func (k Key) MAC() MAC {
	return macFromUint48(uint64(k) >> 16)
}

// BDIndex extracts the packed bridge-domain index.
func (k Key) BDIndex() uint16 {
	return uint16(k)
}

func (k Key) String() string {
	return fmt.Sprintf("%s in bd %d", k.MAC(), k.BDIndex())
}

// hashKey is the bihash.Hasher for Key: the packed value is used as-is.
// bihash picks a bucket by hash modulo the bucket count, so with a
// power-of-two bucket count of at most 2^16 the bucket is decided by the
// bridge-domain index in the low bits.
func hashKey(k Key) uint64 {
	return uint64(k)
}
