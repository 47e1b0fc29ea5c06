package endpoint

import (
	"math/rand/v2"
	"net/netip"
)

// portMask matches transport's "& 0xFFFF" draw: ports are always 16-bit,
// so the random draw is masked down to that range before it is
// range-checked. drawInRange redraws until the value lies in [min, max);
// those redraws do not count as allocator tries.
const portMask = 0xFFFF

// PortAllocator hands out source ports for outbound connections from a
// configured range, backed by a Registry. Grounded on
// transport_alloc_local_port / transport_alloc_local_endpoint.
type PortAllocator struct {
	registry *Registry
	resolver FIBResolver
	ifaceIP  InterfaceIPLookup
	sixTuple SixTupleLookup

	minPort uint16
	maxPort uint16

	maxTriesSeen int
}

// NewPortAllocator builds an allocator over [minPort, maxPort) backed by
// registry, resolving outgoing interfaces and addresses via resolver and
// ifaceIP, and consulting sixTuple for source-port reuse across distinct
// remotes.
func NewPortAllocator(registry *Registry, resolver FIBResolver, ifaceIP InterfaceIPLookup, sixTuple SixTupleLookup, minPort, maxPort uint16) *PortAllocator {
	return &PortAllocator{
		registry: registry,
		resolver: resolver,
		ifaceIP:  ifaceIP,
		sixTuple: sixTuple,
		minPort:  minPort,
		maxPort:  maxPort,
	}
}

// MaxTriesSeen returns the worst-case number of tries (in-range ports
// attempted) any AllocLocalPort call has needed so far, for diagnostics (transport_port_alloc_max_tries).
func (a *PortAllocator) MaxTriesSeen() int {
	return a.maxTriesSeen
}

// AllocLocalPort draws a random port in [min, max), retrying up to
// max-min times, marking it used against lclIP. On a collision it falls
// back to a 6-tuple check: if the full 6-tuple against rmt is still free,
// the port is shared (refcnt incremented) and returned anyway, since
// distinct remotes can safely reuse a source port. Returns ErrNoPort if
// every try is exhausted.
func (a *PortAllocator) AllocLocalPort(proto Proto, lclIP netip.Addr, rmt RemoteEndpoint) (uint16, error) {
	limit := int(a.maxPort) - int(a.minPort)
	if limit <= 0 {
		return 0, ErrNoPort
	}

	tries := 0
	for ; tries < limit; tries++ {
		port := a.drawInRange()

		if _, err := a.registry.MarkUsed(proto, rmt.FIBIndex, lclIP, port); err == nil {
			a.recordTries(tries + 1)
			return port, nil
		}

		if a.sixTuple != nil && a.sixTuple.Exists(rmt.FIBIndex, lclIP, rmt.IP, port, rmt.Port, proto) {
			continue
		}

		if err := a.registry.Share(proto, rmt.FIBIndex, lclIP, port); err == nil {
			a.recordTries(tries + 1)
			return port, nil
		}
	}

	a.recordTries(tries)
	return 0, ErrNoPort
}

func (a *PortAllocator) drawInRange() uint16 {
	for {
		port := uint16(rand.Uint32() & portMask)
		if port >= a.minPort && port < a.maxPort {
			return port
		}
	}
}

func (a *PortAllocator) recordTries(n int) {
	if n > a.maxTriesSeen {
		a.maxTriesSeen = n
	}
}

// AllocLocalEndpoint resolves a local IP and port for an outbound
// connection to rmt, grounded on transport_alloc_local_endpoint.
//
// If rmt.IP's local counterpart isn't supplied by the caller (explicitIP
// is the zero Addr), the outgoing interface is resolved by a FIB lookup
// against rmt.IP and its first configured address of the matching family
// is used. The endpoint freelist is opportunistically flushed before
// allocating. If explicitPort is nonzero, that exact port is tried first
// (falling back to the 6-tuple share check on collision, exactly as the
// random path does) instead of drawing a random one.
func (a *PortAllocator) AllocLocalEndpoint(proto Proto, rmt RemoteEndpoint, explicitIP netip.Addr, explicitPort uint16) (netip.Addr, uint16, error) {
	lclIP := explicitIP
	if !lclIP.IsValid() || lclIP.IsUnspecified() {
		resolved, err := a.resolveLocalIP(rmt)
		if err != nil {
			return netip.Addr{}, 0, err
		}
		lclIP = resolved
	}

	a.registry.CleanupFreelist()

	if explicitPort == 0 {
		port, err := a.AllocLocalPort(proto, lclIP, rmt)
		if err != nil {
			return netip.Addr{}, 0, err
		}
		return lclIP, port, nil
	}

	if _, err := a.registry.MarkUsed(proto, rmt.FIBIndex, lclIP, explicitPort); err == nil {
		return lclIP, explicitPort, nil
	}

	if a.sixTuple != nil && a.sixTuple.Exists(rmt.FIBIndex, lclIP, rmt.IP, explicitPort, rmt.Port, proto) {
		return netip.Addr{}, 0, ErrInUse
	}

	if err := a.registry.Share(proto, rmt.FIBIndex, lclIP, explicitPort); err != nil {
		return netip.Addr{}, 0, err
	}
	return lclIP, explicitPort, nil
}

func (a *PortAllocator) resolveLocalIP(rmt RemoteEndpoint) (netip.Addr, error) {
	swIfIndex := rmt.SwIfIndex
	if swIfIndex == NoInterface {
		resolved, ok := a.resolver.ResolveRoute(rmt.FIBIndex, rmt.IP)
		if !ok {
			return netip.Addr{}, ErrNoRoute
		}
		if resolved == NoInterface {
			return netip.Addr{}, ErrNoInterface
		}
		swIfIndex = resolved
	}

	ip, ok := a.ifaceIP.FirstIP(swIfIndex, rmt.IsIPv4)
	if !ok {
		return netip.Addr{}, ErrNoIP
	}
	return ip, nil
}
