package l2fib

import (
	"context"
	"log/slog"
	"time"

	"github.com/ocx/dataplane/internal/config"
	"github.com/ocx/dataplane/internal/events"
)

// Ager is the single background scanner that walks the table, ages out
// stale and timed-out entries, and publishes batched MAC events to a
// subscribed client. Grounded on l2fib_mac_age_scanner_process and
// l2fib_scan: it walks the table in bounded time slices, yielding between
// them so forwarding workers are never blocked behind a scan in progress.
type Ager struct {
	table  *Table
	cfg    config.L2FIBConfig
	client events.Client
}

// NewAger creates an ager for table. client may be nil, meaning no
// subscriber is attached: entries still age out, but no events are sent.
func NewAger(table *Table, cfg config.L2FIBConfig, client events.Client) *Ager {
	return &Ager{table: table, cfg: cfg, client: client}
}

// Run scans on a fixed interval until ctx is canceled, or immediately
// whenever a flush operation wakes it early.
func (a *Ager) Run(ctx context.Context) {
	delay := time.Duration(a.cfg.EventScanDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 10 * time.Second
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.scan(false)
		case <-a.table.wake:
			a.scan(false)
		}
	}
}

// ScanOnce runs a single full scan pass synchronously. Exported for tests
// and for an operator-triggered one-shot pass outside the Run loop.
func (a *Ager) ScanOnce() {
	a.scan(false)
}

// scan walks every bucket once: reporting pending learn/move events,
// aging out stale or timed-out entries, and recomputing the global and
// per-bridge-domain learn-count tallies from what it actually observed
// (spec section 4.1's self-healing counters). When eventOnly is true,
// aging is skipped entirely; only pending events are drained.
func (a *Ager) scan(eventOnly bool) {
	t := a.table

	budget := time.Duration(a.cfg.ScanYieldBudgetUs) * time.Microsecond
	if budget <= 0 {
		budget = 20 * time.Microsecond
	}
	yield := time.Duration(a.cfg.ScanYieldDurationUs) * time.Microsecond
	if yield <= 0 {
		yield = 100 * time.Microsecond
	}
	maxBatch := a.cfg.MaxMACsInEvent
	if maxBatch <= 0 {
		maxBatch = 128
	}

	scanMinute := t.currentMinute()
	lastStart := time.Now()

	var globalLearn uint32
	bdLearn := make(map[uint32]uint32)

	var batch []events.MACEvent
	flush := func() {
		if len(batch) == 0 || a.client == nil {
			batch = batch[:0]
			return
		}
		if !a.client.Deliver(batch) {
			slog.Warn("l2fib: mac event queue stuffed, dropping batch", "entries", len(batch))
		}
		batch = batch[:0]
	}

	nBuckets := t.kv.NumBuckets()
	for i := 0; i < nBuckets; i++ {
		if d := time.Since(lastStart); d > budget {
			time.Sleep(yield)
			lastStart = time.Now()
		}

		t.kv.MutateBucket(i, func(key Key, val Value, set func(Value), del func()) {
			bdIndex := uint32(key.BDIndex())

			if !val.Flags().Has(FlagAgeNot) {
				globalLearn++
				bdLearn[bdIndex]++
			}

			if a.client != nil && val.Flags().Has(FlagLearnEventPending) {
				action := events.ActionAdd
				if val.Flags().Has(FlagLearnMoved) {
					action = events.ActionMove
				}
				batch = append(batch, events.MACEvent{MAC: [6]byte(key.MAC()), Action: action, SwIfIndex: val.SwIfIndex()})
				if len(batch) >= maxBatch {
					flush()
				}
				set(val.WithoutFlags(FlagLearnEventPending | FlagLearnMoved))
				return // skip aging this pass
			}

			if eventOnly || val.Flags().Has(FlagAgeNot) {
				return
			}

			swIfIndex := val.SwIfIndex()
			sn := t.currentSeqNum(bdIndex, swIfIndex)
			stale := val.SN() != sn

			if !stale {
				bdCfg, ok := t.bds.Get(bdIndex)
				if !ok || bdCfg.MacAge() == 0 {
					return
				}
				delta := int16(scanMinute) - int16(val.Timestamp())
				if delta < 0 {
					delta += 256
				}
				if uint32(delta) < bdCfg.MacAge() {
					return
				}
			}

			if a.client != nil {
				batch = append(batch, events.MACEvent{MAC: [6]byte(key.MAC()), Action: events.ActionDelete, SwIfIndex: swIfIndex})
				if len(batch) >= maxBatch {
					flush()
				}
			}
			del()
			globalLearn--
			bdLearn[bdIndex]--
		})
	}

	flush()

	t.globalLearnCount.store(globalLearn)
	for _, idx := range t.bds.Indices() {
		if cfg, ok := t.bds.Get(idx); ok {
			cfg.SetLearnCount(bdLearn[idx])
		}
	}
}
