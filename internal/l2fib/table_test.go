package l2fib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/dataplane/internal/config"
	"github.com/ocx/dataplane/internal/events"
)

func testCfg() config.L2FIBConfig {
	return config.L2FIBConfig{
		NumBuckets:          16,
		EventScanDelayMs:    10000,
		MaxMACsInEvent:      128,
		ScanYieldBudgetUs:   20,
		ScanYieldDurationUs: 100,
	}
}

func newTestTable() (*Table, *InMemoryBridgeDomains, *InMemoryInterfaceSeqs) {
	bds := NewInMemoryBridgeDomains()
	ifaces := NewInMemoryInterfaceSeqs()
	return NewTable(testCfg(), bds, ifaces), bds, ifaces
}

func TestL2FIBRoundTrip(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	mac := MAC{0x52, 0x54, 0x00, 0x53, 0x18, 0x33}

	require.NoError(t, tbl.Add(mac, 1, 3, 0))

	val, ok := tbl.Lookup(mac, 1)
	require.True(t, ok)
	assert.EqualValues(t, 3, val.SwIfIndex())
	assert.True(t, val.Flags().Has(FlagStatic))
	assert.True(t, val.Flags().Has(FlagAgeNot))
}

func TestAddFilterEntry(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	mac := MAC{0x52, 0x54, 0x00, 0x53, 0x18, 0x77}

	require.NoError(t, tbl.AddFilter(mac, 1))

	val, ok := tbl.Lookup(mac, 1)
	require.True(t, ok)
	assert.Equal(t, NoInterface, val.SwIfIndex())
	assert.True(t, val.Flags().Has(FlagFilter))
	assert.True(t, val.Flags().Has(FlagStatic))
}

func TestDeleteMismatch(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	mac := MAC{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	require.NoError(t, tbl.Add(mac, 1, 5, 0))

	err := tbl.Del(mac, 1, 6)
	assert.ErrorIs(t, err, ErrMismatch)

	_, ok := tbl.Lookup(mac, 1)
	assert.True(t, ok)
}

func TestDeleteNotFound(t *testing.T) {
	tbl, _, _ := newTestTable()
	err := tbl.Del(MAC{1, 2, 3, 4, 5, 6}, 1, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTestRangeHelpers(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(0, 0, 0)
	start := MAC{0x52, 0x54, 0x00, 0x53, 0x00, 0x00}

	added := TestAddRange(tbl, start, 0, 8, 4)
	require.Len(t, added, 4)

	missing, err := TestCheckRange(tbl, start, 0, 4)
	require.NoError(t, err)
	assert.Nil(t, missing)

	TestDelRange(tbl, start, 0, 4)

	missing, err = TestCheckRange(tbl, start, 0, 4)
	require.Error(t, err)
	require.NotNil(t, missing)
	assert.Equal(t, start, *missing)
}

func TestIncrementMACAddsOneToLastOctet(t *testing.T) {
	m := MAC{0x52, 0x54, 0x00, 0x53, 0x00, 0x00}
	next := IncrementMAC(m)
	assert.Equal(t, MAC{0x52, 0x54, 0x00, 0x53, 0x00, 0x01}, next)
}

func TestIncrementMACWraps(t *testing.T) {
	m := MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	next := IncrementMAC(m)
	assert.Equal(t, MAC{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, next)
}

func TestLearnCreatesNonStaticEntry(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 10, 0)
	mac := MAC{1, 2, 3, 4, 5, 6}

	tbl.Learn(mac, 1, 7, false)

	val, ok := tbl.Lookup(mac, 1)
	require.True(t, ok)
	assert.False(t, val.Flags().Has(FlagAgeNot))
	assert.EqualValues(t, 1, tbl.GlobalLearnCount())
}

func TestLearnDoesNotOverwriteStatic(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 10, 0)
	mac := MAC{1, 2, 3, 4, 5, 6}
	require.NoError(t, tbl.Add(mac, 1, 3, 0))

	tbl.Learn(mac, 1, 9, false)

	val, ok := tbl.Lookup(mac, 1)
	require.True(t, ok)
	assert.EqualValues(t, 3, val.SwIfIndex())
}

func TestLearnCountConservationAfterScan(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	bds.Ensure(2, 0, 0)

	tbl.Learn(MAC{1, 1, 1, 1, 1, 1}, 1, 1, false)
	tbl.Learn(MAC{2, 2, 2, 2, 2, 2}, 1, 1, false)
	tbl.Learn(MAC{3, 3, 3, 3, 3, 3}, 2, 1, false)
	require.NoError(t, tbl.Add(MAC{9, 9, 9, 9, 9, 9}, 1, 1, 0))

	ager := NewAger(tbl, testCfg(), nil)
	ager.ScanOnce()

	assert.EqualValues(t, 3, tbl.GlobalLearnCount())
	bd1, _ := bds.Get(1)
	bd2, _ := bds.Get(2)
	assert.EqualValues(t, 2, bd1.LearnCount())
	assert.EqualValues(t, 1, bd2.LearnCount())
}

func TestStaleFlushRemovedByOneScan(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bdCfg := bds.Ensure(1, 0, 0)
	mac := MAC{5, 5, 5, 5, 5, 5}
	tbl.Learn(mac, 1, 1, false)

	bdCfg.BumpSeq()

	ager := NewAger(tbl, testCfg(), nil)
	ager.ScanOnce()

	_, ok := tbl.Lookup(mac, 1)
	assert.False(t, ok)
	assert.EqualValues(t, 0, tbl.GlobalLearnCount())
}

func TestFlushInterfaceRemovedByOneScan(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	mac := MAC{6, 6, 6, 6, 6, 6}
	tbl.Learn(mac, 1, 4, false)

	tbl.FlushInterface(4)

	ager := NewAger(tbl, testCfg(), nil)
	ager.ScanOnce()

	_, ok := tbl.Lookup(mac, 1)
	assert.False(t, ok)
}

func TestLearnEventDeliveredThenCleared(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	client := events.NewChannelClient(1, 4)
	mac := MAC{7, 7, 7, 7, 7, 7}

	tbl.Learn(mac, 1, 2, true)
	val, _ := tbl.Lookup(mac, 1)
	require.True(t, val.Flags().Has(FlagLearnEventPending))

	ager := NewAger(tbl, testCfg(), client)
	ager.ScanOnce()

	select {
	case batch := <-client.Events():
		require.Len(t, batch, 1)
		assert.Equal(t, events.ActionAdd, batch[0].Action)
		assert.EqualValues(t, 2, batch[0].SwIfIndex)
	default:
		t.Fatal("expected a delivered event batch")
	}

	val, _ = tbl.Lookup(mac, 1)
	assert.False(t, val.Flags().Has(FlagLearnEventPending))
}

func TestClearResetsCountsAndEntries(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	tbl.Learn(MAC{1, 1, 1, 1, 1, 1}, 1, 1, false)

	tbl.Clear()

	assert.Equal(t, 0, tbl.NumEntries())
	assert.EqualValues(t, 0, tbl.GlobalLearnCount())
	bd1, _ := bds.Get(1)
	assert.EqualValues(t, 0, bd1.LearnCount())
}

func TestDumpFiltersByBridgeDomain(t *testing.T) {
	tbl, bds, _ := newTestTable()
	bds.Ensure(1, 0, 0)
	bds.Ensure(2, 0, 0)
	require.NoError(t, tbl.Add(MAC{1, 1, 1, 1, 1, 1}, 1, 1, 0))
	require.NoError(t, tbl.Add(MAC{2, 2, 2, 2, 2, 2}, 2, 1, 0))

	bd := uint32(1)
	entries := tbl.Dump(&bd)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].Key.BDIndex())

	all := tbl.Dump(nil)
	assert.Len(t, all, 2)
}
