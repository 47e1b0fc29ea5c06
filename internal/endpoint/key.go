// Package endpoint implements the shared transport endpoint registry: a
// table of local (protocol, fib-index, IP, port) tuples backing outbound
// connections, a randomized source-port allocator, and the reference
// counted descriptor pool and deferred cleanup path behind it (spec
// section 4.3), grounded on vnet/session/transport.c's local-endpoint
// table.
package endpoint

import (
	"encoding/binary"
	"net/netip"
)

// Proto identifies the transport protocol an endpoint is registered
// under, mirroring transport_proto_t's small dense enum.
type Proto uint8

const (
	ProtoTCP Proto = iota
	ProtoUDP
	ProtoGeneric
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "generic"
	}
}

// Key is the 24-byte bihash key: 16-byte IP (IPv4 addresses use their
// IPv4-in-IPv6 form so v4 and v6 keys never collide) ‖ 4-byte fib_index ‖
// 2-byte port (network byte order) ‖ 1-byte proto, with one reserved
// trailing byte, per spec section 3.4.
type Key [24]byte

// NewKey packs a (proto, fib, ip, port) 4-tuple into a bihash key. port is
// a host-order value, as the allocator hands it out; the key stores it
// big-endian, i.e. in network byte order.
func NewKey(proto Proto, fibIndex uint32, ip netip.Addr, port uint16) Key {
	var k Key
	addr16 := ip.As16()
	copy(k[0:16], addr16[:])
	binary.BigEndian.PutUint32(k[16:20], fibIndex)
	binary.BigEndian.PutUint16(k[20:22], port)
	k[22] = byte(proto)
	return k
}

func (k Key) fibIndex() uint32 {
	return binary.BigEndian.Uint32(k[16:20])
}

func (k Key) port() uint16 {
	return binary.BigEndian.Uint16(k[20:22])
}

func (k Key) proto() Proto {
	return Proto(k[22])
}

// hashKey is the bihash.Hasher for Key: an FNV-1a fold over all 24 bytes.
// Identity hashing would skew buckets since most of the key is a
// near-constant IP prefix for a given deployment, so this mixes the
// port/proto/fib tail in as strongly as the IP head.
func hashKey(k Key) uint64 {
	var h uint64 = 14695981039346656037
	for _, b := range k {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}
