package policer

import "sync"

// Counter is a combined (packets, bytes) tally, matching
// vlib_combined_counter_main_t's per-policer-index slot.
type Counter struct {
	Packets uint64
	Bytes   uint64
}

// Policer is one registered token-bucket instance: its name, its
// validated logical config, its derived runtime state, its worker
// binding, and its three conform/exceed/violate counters.
type Policer struct {
	mu sync.Mutex

	Name        string
	Config      Config
	Runtime     Runtime
	ThreadIndex uint32
	lastUpdate  int64 // last bucket-advance tick, in microseconds

	counters [3]Counter // indexed by Color
}

// Counters returns a snapshot of the three combined counters, indexed by
// Color (conform, exceed, violate).
func (p *Policer) Counters() [3]Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

func (p *Policer) zeroCounters() {
	p.counters = [3]Counter{}
}
