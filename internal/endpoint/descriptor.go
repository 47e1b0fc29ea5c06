package endpoint

import (
	"net/netip"
	"sync/atomic"
)

// Descriptor is the pooled record behind a registered local endpoint,
// grounded on local_endpoint_t. It is fully constructed with refcnt = 1
// before being made reachable from the bihash. Once its refcnt reaches
// zero it is programmed for cleanup; a Share that still finds it through
// the bihash before the cleanup pass runs raises the refcnt again, and
// the cleanup pass then leaves it in place instead of freeing its slot.
type Descriptor struct {
	IP       netip.Addr
	FIBIndex uint32
	Port     uint16
	Proto    Proto

	refcnt atomic.Int32
}

// Refcnt reads the descriptor's current reference count.
func (d *Descriptor) Refcnt() int32 {
	return d.refcnt.Load()
}
