package policer

import (
	"sync"
	"time"
)

// Registry is the named policer table: a dense pool of Policers, a
// name->index map, and the per-interface binding maps, grounded on
// vnet_policer_main_t.
type Registry struct {
	mu sync.RWMutex

	policers    []*Policer // nil entries are free slots
	freeIndices []uint32
	indexByName map[string]uint32

	boundByDir  [2]map[uint32]uint32 // [Direction][sw_if_index]policer_index
	toggler     FeatureToggler
	numWorkers  uint32
	clock       func() int64
}

// NewRegistry creates an empty registry. numWorkers bounds the worker
// index Bind accepts, matching vlib_num_workers(). toggler may be
// NoopFeatureToggler{} where no feature graph is wired up.
func NewRegistry(numWorkers uint32, toggler FeatureToggler) *Registry {
	return &Registry{
		indexByName: make(map[string]uint32),
		boundByDir:  [2]map[uint32]uint32{make(map[uint32]uint32), make(map[uint32]uint32)},
		toggler:     toggler,
		numWorkers:  numWorkers,
		clock:       func() int64 { return time.Now().UnixMicro() },
	}
}

func (r *Registry) alloc() uint32 {
	if n := len(r.freeIndices); n > 0 {
		idx := r.freeIndices[n-1]
		r.freeIndices = r.freeIndices[:n-1]
		return idx
	}
	r.policers = append(r.policers, nil)
	return uint32(len(r.policers) - 1)
}

// Add registers a new policer under name, failing ErrExists if taken and
// ErrInvalid if cfg fails validation/conversion.
func (r *Registry) Add(name string, cfg Config) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indexByName[name]; exists {
		return 0, ErrExists
	}

	rt, err := logicalToPhysical(cfg)
	if err != nil {
		return 0, err
	}

	idx := r.alloc()
	r.policers[idx] = &Policer{
		Name:        name,
		Config:      cfg,
		Runtime:     rt,
		ThreadIndex: NoThreadIndex,
		lastUpdate:  r.clock(),
	}
	r.indexByName[name] = idx
	return idx, nil
}

// Update re-validates and re-derives runtime state for an existing
// policer in place, preserving its name and zeroing its counters.
func (r *Registry) Update(index uint32, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.get(index)
	if err != nil {
		return err
	}

	rt, err := logicalToPhysical(cfg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.Config = cfg
	p.Runtime = rt
	p.ThreadIndex = NoThreadIndex
	p.lastUpdate = r.clock()
	p.zeroCounters()
	p.mu.Unlock()
	return nil
}

// Del frees a policer's slot and drops its name mapping.
func (r *Registry) Del(index uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.get(index)
	if err != nil {
		return err
	}

	delete(r.indexByName, p.Name)
	r.policers[index] = nil
	r.freeIndices = append(r.freeIndices, index)
	return nil
}

// Reset refills both buckets to their limits.
func (r *Registry) Reset(index uint32) error {
	r.mu.RLock()
	p, err := r.get(index)
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.Runtime.CurrentBucket = p.Runtime.CurrentLimit
	p.Runtime.ExtendedBucket = p.Runtime.ExtendedLimit
	p.mu.Unlock()
	return nil
}

// Bind sets or clears a policer's worker affinity. bind=false clears it
// regardless of worker.
func (r *Registry) Bind(index uint32, worker uint32, bind bool) error {
	r.mu.RLock()
	p, err := r.get(index)
	numWorkers := r.numWorkers
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	if !bind {
		p.mu.Lock()
		p.ThreadIndex = NoThreadIndex
		p.mu.Unlock()
		return nil
	}

	if worker >= numWorkers {
		return ErrWorkerInvalid
	}
	p.mu.Lock()
	p.ThreadIndex = worker
	p.mu.Unlock()
	return nil
}

// Input binds or unbinds a policer to an interface in a traffic
// direction, toggling the matching data-plane feature.
func (r *Registry) Input(index uint32, swIfIndex uint32, dir Direction, apply bool) error {
	r.mu.Lock()
	_, err := r.get(index)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if apply {
		r.boundByDir[dir][swIfIndex] = index
	} else {
		r.boundByDir[dir][swIfIndex] = NoPolicerIndex
	}
	r.mu.Unlock()

	if dir == DirectionRX {
		r.toggler.EnableDisable("policer-input", swIfIndex, apply)
	} else {
		r.toggler.EnableDisable("policer-output", swIfIndex, apply)
	}
	return nil
}

// BoundPolicer returns the policer index bound to swIfIndex in dir, if
// any.
func (r *Registry) BoundPolicer(swIfIndex uint32, dir Direction) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.boundByDir[dir][swIfIndex]
	return idx, ok && idx != NoPolicerIndex
}

// Get returns the policer at index for the hot-path Conform call.
func (r *Registry) Get(index uint32) (*Policer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(index)
}

// GetByName resolves a registered policer's index by name.
func (r *Registry) GetByName(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexByName[name]
	return idx, ok
}

// Now returns the registry's clock reading, in microseconds, for callers
// driving Conform.
func (r *Registry) Now() int64 {
	return r.clock()
}

func (r *Registry) get(index uint32) (*Policer, error) {
	if int(index) >= len(r.policers) || r.policers[index] == nil {
		return nil, ErrNotFound
	}
	return r.policers[index], nil
}
