package l2fib

import "fmt"

// MAC is a 6-octet hardware address, stored in wire order.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// uint48 packs the MAC into the low 48 bits of a uint64, big-endian, which
// is how both the key and incr_mac_address treat it.
func (m MAC) uint48() uint64 {
	return uint64(m[0])<<40 | uint64(m[1])<<32 | uint64(m[2])<<24 |
		uint64(m[3])<<16 | uint64(m[4])<<8 | uint64(m[5])
}

func macFromUint48(v uint64) MAC {
	return MAC{
		byte(v >> 40), byte(v >> 32), byte(v >> 24),
		byte(v >> 16), byte(v >> 8), byte(v),
	}
}

// IncrementMAC returns the next MAC address in sequence, grounded on
// incr_mac_address. The original adds 1<<16 to an 8-byte over-read whose
// real 48-bit MAC sits in bits 63..16, which is a true +1 on the MAC;
// uint48 already strips that padding, so the equivalent op here is a
// plain +1. It wraps silently at the 48-bit boundary.
func IncrementMAC(m MAC) MAC {
	v := m.uint48()
	v = (v + 1) & 0xFFFFFFFFFFFF
	return macFromUint48(v)
}
