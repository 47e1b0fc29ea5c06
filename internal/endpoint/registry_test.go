package endpoint

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testIP  = netip.MustParseAddr("10.0.0.1")
	testIP2 = netip.MustParseAddr("10.0.0.2")
	rmtIP   = netip.MustParseAddr("203.0.113.5")
)

func TestMarkUsedRejectsDuplicate(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})

	_, err := r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	require.NoError(t, err)

	_, err = r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	assert.ErrorIs(t, err, ErrInUse)
}

func TestShareReleaseRefcountLifecycle(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})

	idx, err := r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	require.NoError(t, err)

	d, ok := r.Descriptor(idx)
	require.True(t, ok)
	assert.EqualValues(t, 1, d.Refcnt())

	require.NoError(t, r.Share(ProtoTCP, 0, testIP, 2000))
	assert.EqualValues(t, 2, d.Refcnt())

	require.NoError(t, r.Release(ProtoTCP, 0, testIP, 2000))
	assert.EqualValues(t, 1, d.Refcnt())

	require.NoError(t, r.Release(ProtoTCP, 0, testIP, 2000))
	assert.EqualValues(t, 0, d.Refcnt())
}

func TestReleaseUnknownTupleNotFound(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	err := r.Release(ProtoTCP, 0, testIP, 2000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseTwiceReturnsBusy(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	_, err := r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	require.NoError(t, err)

	require.NoError(t, r.Release(ProtoTCP, 0, testIP, 2000))
	err = r.Release(ProtoTCP, 0, testIP, 2000)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestFreelistThresholdTriggersCleanup(t *testing.T) {
	// A threshold of 1 means the second programmed cleanup (pending len
	// 2 > 1) schedules and runs CleanupFreelist inline, freeing 2000 and
	// 2001; the third release leaves 2002 alone on the freelist.
	r := NewRegistry(16, 1, InlineRPCScheduler{})

	for _, port := range []uint16{2000, 2001, 2002} {
		_, err := r.MarkUsed(ProtoTCP, 0, testIP, port)
		require.NoError(t, err)
		require.NoError(t, r.Release(ProtoTCP, 0, testIP, port))
	}

	assert.Equal(t, 1, r.FreelistDepth())

	_, ok := r.Lookup(ProtoTCP, 0, testIP, 2000)
	assert.False(t, ok)
}

func TestCleanupFreelistSkipsResharedDescriptor(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})

	idx, err := r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	require.NoError(t, err)
	require.NoError(t, r.Release(ProtoTCP, 0, testIP, 2000))

	// Port re-shared after the release programmed it for cleanup.
	require.NoError(t, r.Share(ProtoTCP, 0, testIP, 2000))

	r.CleanupFreelist()

	found, ok := r.Lookup(ProtoTCP, 0, testIP, 2000)
	require.True(t, ok)
	assert.Equal(t, idx, found)
}

func TestPortsInUseMirrorsPoolMinusFreelist(t *testing.T) {
	r := NewRegistry(16, 1000, InlineRPCScheduler{}) // high threshold: no auto-flush

	_, err := r.MarkUsed(ProtoTCP, 0, testIP, 2000)
	require.NoError(t, err)
	_, err = r.MarkUsed(ProtoTCP, 0, testIP2, 2001)
	require.NoError(t, err)
	assert.Equal(t, 2, r.PortsInUse())

	require.NoError(t, r.Release(ProtoTCP, 0, testIP, 2000))
	assert.Equal(t, 1, r.PortsInUse())
	assert.Equal(t, 1, r.FreelistDepth())

	r.CleanupFreelist()
	assert.Equal(t, 1, r.PortsInUse())
	assert.Equal(t, 0, r.FreelistDepth())
}

// --- fake collaborators for the port allocator ---

type fakeResolver struct {
	swIfIndex uint32
	ok        bool
}

func (f fakeResolver) ResolveRoute(uint32, netip.Addr) (uint32, bool) {
	return f.swIfIndex, f.ok
}

type fakeIfaceIP struct {
	ip netip.Addr
	ok bool
}

func (f fakeIfaceIP) FirstIP(uint32, bool) (netip.Addr, bool) {
	return f.ip, f.ok
}

type fakeSixTuple struct {
	free bool
}

func (f fakeSixTuple) Exists(uint32, netip.Addr, netip.Addr, uint16, uint16, Proto) bool {
	return !f.free
}

func TestPortAllocatorReturnsPortInRange(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{}, fakeIfaceIP{}, fakeSixTuple{free: true}, 40000, 40010)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	port, err := alloc.AllocLocalPort(ProtoTCP, testIP, rmt)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, port, uint16(40000))
	assert.Less(t, port, uint16(40010))
}

func TestPortAllocatorExhaustionReturnsNoPort(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{}, fakeIfaceIP{}, fakeSixTuple{free: false}, 50000, 50001)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	_, err := alloc.AllocLocalPort(ProtoTCP, testIP, rmt)
	require.NoError(t, err)

	// The only port in range is now marked used and the 6-tuple is
	// reported busy, so a second distinct remote can't reuse it.
	rmt2 := RemoteEndpoint{IP: netip.MustParseAddr("203.0.113.9"), Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	_, err = alloc.AllocLocalPort(ProtoTCP, testIP, rmt2)
	assert.ErrorIs(t, err, ErrNoPort)
}

func TestPortAllocatorSharesPortAcrossDistinctRemotes(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{}, fakeIfaceIP{}, fakeSixTuple{free: true}, 50100, 50101)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	port1, err := alloc.AllocLocalPort(ProtoTCP, testIP, rmt)
	require.NoError(t, err)

	rmt2 := RemoteEndpoint{IP: netip.MustParseAddr("203.0.113.9"), Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	port2, err := alloc.AllocLocalPort(ProtoTCP, testIP, rmt2)
	require.NoError(t, err)
	assert.Equal(t, port1, port2)

	idx, ok := r.Lookup(ProtoTCP, 0, testIP, port1)
	require.True(t, ok)
	d, _ := r.Descriptor(idx)
	assert.EqualValues(t, 2, d.Refcnt())
}

func TestAllocLocalEndpointResolvesRouteAndIP(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{swIfIndex: 3, ok: true}, fakeIfaceIP{ip: testIP, ok: true}, fakeSixTuple{free: true}, 60000, 60010)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	ip, port, err := alloc.AllocLocalEndpoint(ProtoTCP, rmt, netip.Addr{}, 0)
	require.NoError(t, err)
	assert.Equal(t, testIP, ip)
	assert.GreaterOrEqual(t, port, uint16(60000))
}

func TestAllocLocalEndpointNoRoute(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{ok: false}, fakeIfaceIP{}, fakeSixTuple{free: true}, 60000, 60010)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 443, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	_, _, err := alloc.AllocLocalEndpoint(ProtoTCP, rmt, netip.Addr{}, 0)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestAllocLocalEndpointExplicitPortCollisionFallsBackToSixTuple(t *testing.T) {
	r := NewRegistry(16, DefaultFlushThreshold, InlineRPCScheduler{})
	alloc := NewPortAllocator(r, fakeResolver{}, fakeIfaceIP{}, fakeSixTuple{free: true}, 0, 0)

	_, err := r.MarkUsed(ProtoTCP, 0, testIP, 443)
	require.NoError(t, err)

	rmt := RemoteEndpoint{IP: rmtIP, Port: 9999, FIBIndex: 0, IsIPv4: true, SwIfIndex: NoInterface}
	ip, port, err := alloc.AllocLocalEndpoint(ProtoTCP, rmt, testIP, 443)
	require.NoError(t, err)
	assert.Equal(t, testIP, ip)
	assert.Equal(t, uint16(443), port)

	idx, ok := r.Lookup(ProtoTCP, 0, testIP, 443)
	require.True(t, ok)
	d, _ := r.Descriptor(idx)
	assert.EqualValues(t, 2, d.Refcnt())
}
