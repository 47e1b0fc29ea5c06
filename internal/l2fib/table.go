// Package l2fib implements the MAC forwarding table: a bounded-memory
// bucketized hash table mapping (MAC, bridge-domain) to an outgoing
// interface, maintained by explicit provisioning, data-plane learning, and
// a cooperative background ager.
package l2fib

import (
	"time"

	"github.com/ocx/dataplane/internal/bihash"
	"github.com/ocx/dataplane/internal/config"
)

// Entry is a single (key, value) pair as returned by Dump.
type Entry struct {
	Key   Key
	Value Value
}

// bytesPerEntry estimates the per-entry overhead (16-byte packed KV plus
// Go map/bucket bookkeeping) used to turn a byte budget into an entry-count
// ceiling; it is intentionally approximate, matching the original's own
// arena-sizing heuristics.
const bytesPerEntry = 48

// Table is the MAC forwarding table for every bridge domain in the
// instance. It wraps a bihash.Table keyed on the packed (MAC, bd) key,
// grounded on l2fib_entry_key_t/l2fib_entry_result_t and the bihash-backed
// fm->mac_table in l2_fib.c.
type Table struct {
	kv               *bihash.Table[Key, Value]
	bds              BridgeDomainTable
	ifaces           InterfaceSeqTable
	globalLearnCount atomicCounter
	epoch            time.Time
	wake             chan struct{}
	maxEntries       int
}

// NewTable constructs an empty table sized per cfg, consulting bds and
// ifaces for sequence-number and aging state.
func NewTable(cfg config.L2FIBConfig, bds BridgeDomainTable, ifaces InterfaceSeqTable) *Table {
	maxEntries := 0
	if cfg.TableSizeBytes > 0 {
		maxEntries = int(cfg.TableSizeBytes / bytesPerEntry)
	}
	return &Table{
		kv:         bihash.New[Key, Value](cfg.NumBuckets, hashKey),
		bds:        bds,
		ifaces:     ifaces,
		epoch:      time.Now(),
		wake:       make(chan struct{}, 1),
		maxEntries: maxEntries,
	}
}

// hasCapacityForNewKey reports whether inserting one more previously-absent
// key would stay within the table's configured memory budget. A zero
// maxEntries means no budget was configured, so capacity is unbounded.
func (t *Table) hasCapacityForNewKey() bool {
	return t.maxEntries == 0 || t.kv.Len() < t.maxEntries
}

// GlobalLearnCount returns the total number of non-static entries across
// every bridge domain, matching l2learn_main_t.global_learn_count.
func (t *Table) GlobalLearnCount() uint32 {
	return t.globalLearnCount.load()
}

// currentMinute returns minutes elapsed since the table was created,
// mod 256, matching l2fib_scan's (u8)(start_time/60) timestamp.
func (t *Table) currentMinute() uint8 {
	return uint8(time.Since(t.epoch).Minutes())
}

// currentSeqNum composes the bridge domain's and interface's rolling
// sequence numbers, matching l2fib_cur_seq_num.
func (t *Table) currentSeqNum(bdIndex uint32, swIfIndex uint32) uint16 {
	var bdSeq uint8
	if cfg, ok := t.bds.Get(bdIndex); ok {
		bdSeq = cfg.SeqNum()
	}
	ifSeq := t.ifaces.SeqNum(swIfIndex)
	return uint16(bdSeq)<<8 | uint16(ifSeq)
}

func (t *Table) incrementLearnCounts(bdIndex uint32) {
	t.globalLearnCount.incr()
	if cfg, ok := t.bds.Get(bdIndex); ok {
		cfg.incrLearnCount()
	}
}

func (t *Table) decrementLearnCounts(bdIndex uint32) {
	t.globalLearnCount.decrIfPositive()
	if cfg, ok := t.bds.Get(bdIndex); ok {
		cfg.decrLearnCountIfPositive()
	}
}

// Add provisions a static entry, always carrying FlagAgeNot: provisioned
// entries never age and are never overwritten by learning.
func (t *Table) Add(mac MAC, bdIndex uint32, swIfIndex uint32, flags Flags) error {
	flags |= FlagStatic | FlagAgeNot
	key := NewKey(mac, uint16(bdIndex))
	existing, exists := t.kv.Get(key)
	if !exists && !t.hasCapacityForNewKey() {
		return ErrResourceExhausted
	}
	if exists && !existing.Flags().Has(FlagAgeNot) {
		t.decrementLearnCounts(bdIndex)
	}
	sn := t.currentSeqNum(bdIndex, swIfIndex)
	val := NewValue(swIfIndex, flags, sn, t.currentMinute())
	t.kv.Set(key, val)
	return nil
}

// AddFilter provisions a drop entry: matching traffic is discarded rather
// than forwarded. Always FlagStatic|FlagFilter with no real interface.
func (t *Table) AddFilter(mac MAC, bdIndex uint32) error {
	return t.Add(mac, bdIndex, NoInterface, FlagFilter)
}

// AddBVI provisions an entry routed to the bridge-group virtual interface.
func (t *Table) AddBVI(mac MAC, bdIndex uint32, bviSwIfIndex uint32) error {
	return t.Add(mac, bdIndex, bviSwIfIndex, FlagBVI)
}

// Learn records a data-plane MAC sighting: a fresh learn if the key is
// unseen, a refresh or move if it already names a learned (non-static)
// entry. It never overwrites a statically-provisioned entry. When an
// event client is attached, the entry is marked FlagLearnEventPending (and
// FlagLearnMoved on a genuine move) so the next ager pass reports it
// before it becomes eligible for aging. Returns ErrResourceExhausted if a
// brand-new key would exceed the table's memory budget.
func (t *Table) Learn(mac MAC, bdIndex uint32, swIfIndex uint32, eventsEnabled bool) error {
	key := NewKey(mac, uint16(bdIndex))
	existing, exists := t.kv.Get(key)
	if exists && existing.Flags().Has(FlagStatic) {
		return nil
	}
	if !exists && !t.hasCapacityForNewKey() {
		return ErrResourceExhausted
	}

	moved := exists && existing.SwIfIndex() != swIfIndex
	if !exists {
		t.incrementLearnCounts(bdIndex)
	}

	var flags Flags
	if eventsEnabled {
		flags |= FlagLearnEventPending
		if moved {
			flags |= FlagLearnMoved
		}
	}

	sn := t.currentSeqNum(bdIndex, swIfIndex)
	t.kv.Set(key, NewValue(swIfIndex, flags, sn, t.currentMinute()))
	return nil
}

// Del removes the entry for mac in bdIndex. If expectedIfIndex is
// non-zero, the deletion is refused with ErrMismatch unless the entry's
// current interface matches it; zero means "don't care".
func (t *Table) Del(mac MAC, bdIndex uint32, expectedIfIndex uint32) error {
	key := NewKey(mac, uint16(bdIndex))
	val, ok := t.kv.Get(key)
	if !ok {
		return ErrNotFound
	}
	if expectedIfIndex != 0 && expectedIfIndex != val.SwIfIndex() {
		return ErrMismatch
	}
	if !val.Flags().Has(FlagAgeNot) {
		t.decrementLearnCounts(bdIndex)
	}
	t.kv.Delete(key)
	return nil
}

// Lookup returns the entry for mac in bdIndex, if any.
func (t *Table) Lookup(mac MAC, bdIndex uint32) (Value, bool) {
	return t.kv.Get(NewKey(mac, uint16(bdIndex)))
}

// triggerWake signals the ager to run a scan pass before its next timer
// tick, without blocking if one is already pending.
func (t *Table) triggerWake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// FlushInterface invalidates every entry currently pointing at swIfIndex
// by bumping that interface's sequence number: the next ager scan finds
// them stale and removes them. Lookup does not compare sequence numbers,
// so it keeps returning such entries until that scan has run.
func (t *Table) FlushInterface(swIfIndex uint32) {
	t.ifaces.BumpSeq(swIfIndex)
	t.triggerWake()
}

// FlushBridge invalidates every entry in bdIndex by bumping that bridge
// domain's sequence number.
func (t *Table) FlushBridge(bdIndex uint32) {
	if cfg, ok := t.bds.Get(bdIndex); ok {
		cfg.BumpSeq()
	}
	t.triggerWake()
}

// FlushAll invalidates every entry in every configured bridge domain.
func (t *Table) FlushAll() {
	for _, idx := range t.bds.Indices() {
		if cfg, ok := t.bds.Get(idx); ok && cfg.Valid() {
			cfg.BumpSeq()
		}
	}
	t.triggerWake()
}

// Clear removes every entry and resets every learn-count tally to zero.
func (t *Table) Clear() {
	t.kv.Clear()
	t.globalLearnCount.store(0)
	for _, idx := range t.bds.Indices() {
		if cfg, ok := t.bds.Get(idx); ok {
			cfg.SetLearnCount(0)
		}
	}
}

// Dump returns every entry in the table, optionally filtered to a single
// bridge domain.
func (t *Table) Dump(bdFilter *uint32) []Entry {
	var out []Entry
	for i := 0; i < t.kv.NumBuckets(); i++ {
		t.kv.WalkBucket(i, func(k Key, v Value) bool {
			if bdFilter == nil || uint32(k.BDIndex()) == *bdFilter {
				out = append(out, Entry{Key: k, Value: v})
			}
			return true
		})
	}
	return out
}

// NumEntries returns the total number of entries in the table, static and
// learned combined.
func (t *Table) NumEntries() int {
	return t.kv.Len()
}
