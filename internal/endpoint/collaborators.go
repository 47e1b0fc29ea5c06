package endpoint

import "net/netip"

// RemoteEndpoint describes the peer AllocLocalEndpoint is dialing,
// grounded on transport_endpoint_cfg_t.
type RemoteEndpoint struct {
	IP        netip.Addr
	Port      uint16
	FIBIndex  uint32
	IsIPv4    bool
	SwIfIndex uint32 // endpoint.NoInterface if not yet resolved
}

// NoInterface marks an unresolved outgoing interface, mirroring
// ENDPOINT_INVALID_INDEX.
const NoInterface = ^uint32(0)

// FIBResolver resolves the outgoing interface for a remote address,
// grounded on fib_table_lookup + fib_entry_get_resolving_interface.
type FIBResolver interface {
	ResolveRoute(fibIndex uint32, remote netip.Addr) (swIfIndex uint32, ok bool)
}

// InterfaceIPLookup reads an interface's first configured address of a
// given family, grounded on ip_interface_get_first_ip.
type InterfaceIPLookup interface {
	FirstIP(swIfIndex uint32, isIPv4 bool) (netip.Addr, bool)
}

// SixTupleLookup answers whether a full 6-tuple session already exists,
// grounded on session_lookup_6tuple. A free 6-tuple lets the port
// allocator share a local port across distinct remotes.
type SixTupleLookup interface {
	Exists(fibIndex uint32, lclIP, rmtIP netip.Addr, lclPort, rmtPort uint16, proto Proto) bool
}

// RPCScheduler dispatches the control-thread-only freelist cleanup pass,
// grounded on session_send_rpc_evt_to_thread_force. run is called once per
// scheduled cleanup, either synchronously on the caller's goroutine
// (InlineRPCScheduler) or on another goroutine (GoRPCScheduler).
type RPCScheduler interface {
	Schedule(run func())
}

// InlineRPCScheduler runs the cleanup pass synchronously on the calling
// goroutine. Suitable for tests and for single-threaded control-plane
// wiring where there is no separate control thread to hop to.
type InlineRPCScheduler struct{}

func (InlineRPCScheduler) Schedule(run func()) { run() }

// GoRPCScheduler dispatches the cleanup pass on its own goroutine,
// matching the real deployment's control-thread handoff more closely than
// InlineRPCScheduler.
type GoRPCScheduler struct{}

func (GoRPCScheduler) Schedule(run func()) { go run() }

// NoopFIBResolver never resolves a route; wire in a real FIB client where
// the control plane tracks actual routing state.
type NoopFIBResolver struct{}

func (NoopFIBResolver) ResolveRoute(uint32, netip.Addr) (uint32, bool) { return 0, false }

// NoopInterfaceIPLookup never finds an interface address.
type NoopInterfaceIPLookup struct{}

func (NoopInterfaceIPLookup) FirstIP(uint32, bool) (netip.Addr, bool) { return netip.Addr{}, false }

// NoopSixTupleLookup reports every 6-tuple as free, the conservative
// default where no session layer is wired in to arbitrate source-port
// reuse across distinct remotes.
type NoopSixTupleLookup struct{}

func (NoopSixTupleLookup) Exists(uint32, netip.Addr, netip.Addr, uint16, uint16, Proto) bool {
	return false
}
