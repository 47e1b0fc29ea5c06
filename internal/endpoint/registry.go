package endpoint

import (
	"net/netip"
	"sync"

	"github.com/ocx/dataplane/internal/bihash"
)

// DefaultFlushThreshold is the freelist depth that triggers a cleanup
// pass, carried over unchanged from transport_program_endpoint_cleanup's
// literal 32.
const DefaultFlushThreshold = 32

// Registry is the shared local-endpoint table: a bihash keyed by the
// 4-tuple, a pool of descriptors, and the single deferred-cleanup
// freelist behind Release, grounded on transport_main_t's
// local_endpoints/local_endpoints_table/lcl_endpts_freelist trio.
//
// MarkUsed and the pool-growing half of allocation are documented in the
// original as control-thread-only; Share and Release are safe from any
// worker because they perform a read-only bihash lookup followed by an
// atomic refcount RMW, and Release touches the shared freelist only
// under freelistMu.
type Registry struct {
	kv *bihash.Table[Key, uint32]

	mu          sync.RWMutex
	descriptors []*Descriptor // nil entries are free pool slots
	freeSlots   []uint32

	freelistMu     sync.Mutex // stands in for clib_spinlock_t local_endpoints_lock
	pending        []uint32
	cleanupPending bool
	flushThreshold int

	rpc RPCScheduler
}

// NewRegistry creates an empty registry. flushThreshold <= 0 defaults to
// DefaultFlushThreshold. rpc schedules the control-thread cleanup pass;
// pass InlineRPCScheduler{} where there is no separate control thread.
func NewRegistry(nBuckets int, flushThreshold int, rpc RPCScheduler) *Registry {
	if flushThreshold <= 0 {
		flushThreshold = DefaultFlushThreshold
	}
	return &Registry{
		kv:             bihash.New[Key, uint32](nBuckets, hashKey),
		flushThreshold: flushThreshold,
		rpc:            rpc,
	}
}

// Lookup is the wait-free bihash read behind every other operation.
func (r *Registry) Lookup(proto Proto, fibIndex uint32, ip netip.Addr, port uint16) (uint32, bool) {
	return r.kv.Get(NewKey(proto, fibIndex, ip, port))
}

// Descriptor returns the pool entry at idx, if it is still live.
func (r *Registry) Descriptor(idx uint32) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(idx) >= len(r.descriptors) || r.descriptors[idx] == nil {
		return nil, false
	}
	return r.descriptors[idx], true
}

// MarkUsed registers (proto, fib, ip, port) with refcnt = 1, failing
// ErrInUse if already registered. Must be called only from the control
// thread, matching transport_endpoint_mark_used.
func (r *Registry) MarkUsed(proto Proto, fibIndex uint32, ip netip.Addr, port uint16) (uint32, error) {
	key := NewKey(proto, fibIndex, ip, port)
	if _, ok := r.kv.Get(key); ok {
		return 0, ErrInUse
	}

	d := &Descriptor{IP: ip, FIBIndex: fibIndex, Port: port, Proto: proto}
	d.refcnt.Store(1)

	idx := r.allocSlot(d)
	r.kv.Set(key, idx)
	return idx, nil
}

// Share increments the refcount of an already-registered endpoint,
// letting a second outbound connection reuse the source port when its
// full 6-tuple is distinct. Grounded on transport_share_local_endpoint.
func (r *Registry) Share(proto Proto, fibIndex uint32, ip netip.Addr, port uint16) error {
	idx, ok := r.kv.Get(NewKey(proto, fibIndex, ip, port))
	if !ok {
		return ErrNotFound
	}
	d, ok := r.Descriptor(idx)
	if !ok {
		return ErrNotFound
	}
	d.refcnt.Add(1)
	return nil
}

// Release decrements the refcount of a registered endpoint and, once it
// reaches zero, programs the descriptor for deferred cleanup. Grounded on
// transport_release_local_endpoint.
func (r *Registry) Release(proto Proto, fibIndex uint32, ip netip.Addr, port uint16) error {
	idx, ok := r.kv.Get(NewKey(proto, fibIndex, ip, port))
	if !ok {
		return ErrNotFound
	}
	d, ok := r.Descriptor(idx)
	if !ok {
		return ErrNotFound
	}

	for {
		old := d.refcnt.Load()
		if old <= 0 {
			return ErrBusy
		}
		if d.refcnt.CompareAndSwap(old, old-1) {
			if old == 1 {
				r.programCleanup(idx)
			}
			return nil
		}
	}
}

// programCleanup appends idx to the pending freelist and, if that pushes
// its depth past flushThreshold with no cleanup already scheduled, asks
// rpc to run CleanupFreelist. Grounded on
// transport_program_endpoint_cleanup.
func (r *Registry) programCleanup(idx uint32) {
	flush := false

	r.freelistMu.Lock()
	r.pending = append(r.pending, idx)
	if !r.cleanupPending && len(r.pending) > r.flushThreshold {
		r.cleanupPending = true
		flush = true
	}
	r.freelistMu.Unlock()

	if flush {
		r.rpc.Schedule(r.CleanupFreelist)
	}
}

// CleanupFreelist drains the pending freelist, freeing every descriptor
// whose refcount is still zero and returning its pool slot. A descriptor
// that was re-shared after being programmed for cleanup is left in place:
// "port re-shared after attempt to cleanup", per
// transport_cleanup_freelist. Control-thread only.
func (r *Registry) CleanupFreelist() {
	r.freelistMu.Lock()
	pending := r.pending
	r.pending = nil
	r.cleanupPending = false
	r.freelistMu.Unlock()

	for _, idx := range pending {
		d, ok := r.Descriptor(idx)
		if !ok || d.Refcnt() > 0 {
			continue
		}
		r.kv.Delete(NewKey(d.Proto, d.FIBIndex, d.IP, d.Port))
		r.freeSlot(idx)
	}
}

// PortsInUse mirrors transport_port_local_in_use: allocated pool slots
// minus those still sitting on the pending freelist.
func (r *Registry) PortsInUse() int {
	r.mu.RLock()
	allocated := len(r.descriptors) - len(r.freeSlots)
	r.mu.RUnlock()

	r.freelistMu.Lock()
	pendingLen := len(r.pending)
	r.freelistMu.Unlock()

	return allocated - pendingLen
}

// FreelistDepth reports how many descriptors are currently pending
// cleanup, for diagnostics/metrics.
func (r *Registry) FreelistDepth() int {
	r.freelistMu.Lock()
	defer r.freelistMu.Unlock()
	return len(r.pending)
}

func (r *Registry) allocSlot(d *Descriptor) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.freeSlots); n > 0 {
		idx := r.freeSlots[n-1]
		r.freeSlots = r.freeSlots[:n-1]
		r.descriptors[idx] = d
		return idx
	}
	r.descriptors = append(r.descriptors, d)
	return uint32(len(r.descriptors) - 1)
}

func (r *Registry) freeSlot(idx uint32) {
	r.mu.Lock()
	r.descriptors[idx] = nil
	r.freeSlots = append(r.freeSlots, idx)
	r.mu.Unlock()
}
