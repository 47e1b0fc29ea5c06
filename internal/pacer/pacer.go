// Package pacer implements the per-connection TX pacer embedded in a
// transport connection (spec sections 3.5 and 4.4): a lazily-advanced
// token bucket bounding how much a connection may burst between send
// opportunities, grounded on the same lazy-advancement shape as the
// policer's conform path in internal/policer/conform.go.
package pacer

import "sync"

const (
	scaleBits = 20
	usPerSec  = 1_000_000
)

// Pacer holds the state machine for one connection's TX pacing: unpaced
// until Init is called, thereafter paced until nothing re-initializes it.
type Pacer struct {
	mu sync.Mutex

	paced           bool
	rateBps         uint64
	tokensPerPeriod uint64 // fixed-point (Q(64-scaleBits).scaleBits) bytes accrued per microsecond
	bucket          int64  // signed: may go negative under Consume
	maxBurst        uint32
	lastUpdate      int64 // microseconds
	desched         deschedFlag

	minBurst        uint32
	maxBurstCap     uint32
	burstsPerRTT    int
	secondsPerLoop  float64
	loopFrequencyHz float64
}

// Config bounds a Pacer's burst window, grounded on config.PacerConfig.
type Config struct {
	MinBurstBytes   uint32
	MaxBurstBytes   uint32
	BurstsPerRTT    int
	SecondsPerLoop  float64
	LoopFrequencyHz float64
}

// New creates an unpaced Pacer bounded by cfg. Init must be called before
// any other operation is meaningful.
func New(cfg Config) *Pacer {
	return &Pacer{
		minBurst:        cfg.MinBurstBytes,
		maxBurstCap:     cfg.MaxBurstBytes,
		burstsPerRTT:    cfg.BurstsPerRTT,
		secondsPerLoop:  cfg.SecondsPerLoop,
		loopFrequencyHz: cfg.LoopFrequencyHz,
		maxBurst:        cfg.MinBurstBytes,
	}
}

// Paced reports whether the TX-PACED flag is set.
func (p *Pacer) Paced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paced
}

// MaxBurst returns the current burst ceiling.
func (p *Pacer) MaxBurst() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxBurst
}

// Bucket returns the current (possibly negative) bucket level.
func (p *Pacer) Bucket() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bucket
}

func tokensPerPeriod(rateBps uint64) uint64 {
	return (rateBps << scaleBits) / usPerSec
}

// Init transitions unpaced -> paced: sets TX-PACED, the rate, and resets
// the bucket.
func (p *Pacer) Init(nowUs int64, rateBps uint64, initialBucket int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paced = true
	p.rateBps = rateBps
	p.tokensPerPeriod = tokensPerPeriod(rateBps)
	p.bucket = initialBucket
	p.lastUpdate = nowUs
}

// computeMaxBurst derives a burst ceiling from the configured RTT-spread
// window, clamped to [minBurst, maxBurstCap].
func (p *Pacer) computeMaxBurst(rateBps uint64, rttUs uint32) uint32 {
	windowUs := float64(rttUs)
	if p.burstsPerRTT > 0 {
		windowUs /= float64(p.burstsPerRTT)
	}
	loopFloor := p.secondsPerLoop * p.loopFrequencyHz
	if loopFloor > windowUs {
		windowUs = loopFloor
	}
	if windowUs < 1 {
		windowUs = 1
	}
	if windowUs > 1000 {
		windowUs = 1000
	}

	burstBytes := float64(rateBps) * windowUs / usPerSec
	if burstBytes < float64(p.minBurst) {
		return p.minBurst
	}
	if burstBytes > float64(p.maxBurstCap) {
		return p.maxBurstCap
	}
	return uint32(burstBytes)
}

// Update recomputes tokens_per_period and max_burst from a fresh rate/RTT
// sample without disturbing bucket beyond the new clamp.
func (p *Pacer) Update(rateBps uint64, rttUs uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rateBps = rateBps
	p.tokensPerPeriod = tokensPerPeriod(rateBps)
	p.maxBurst = p.computeMaxBurst(rateBps, rttUs)
	if p.bucket > int64(p.maxBurst) {
		p.bucket = int64(p.maxBurst)
	}
}

// Reset re-derives rate/burst state via Update, then forces last_update
// and bucket to the given starting point.
func (p *Pacer) Reset(nowUs int64, rateBps uint64, rttUs uint32, startBucket int64) {
	p.Update(rateBps, rttUs)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastUpdate = nowUs
	p.bucket = startBucket
}

// MaxBurstNow lazily advances the bucket by elapsed tokens since the last
// update, committing only once the accrued increment exceeds 10 tokens
// (amortizing clock reads on a loop that may poll far more often than the
// bucket actually needs replenishing). Returns max_burst while the bucket
// is non-negative, 0 once it has gone negative under Consume.
func (p *Pacer) MaxBurstNow(nowUs int64) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := nowUs - p.lastUpdate; n > 0 {
		inc := (uint64(n) * p.tokensPerPeriod) >> scaleBits
		if inc > 10 {
			p.lastUpdate = nowUs
			next := p.bucket + int64(inc)
			if next > int64(p.maxBurst) {
				next = int64(p.maxBurst)
			}
			p.bucket = next
		}
	}

	if p.bucket < 0 {
		return 0
	}
	return p.maxBurst
}

// Consume debits bucket by size bytes sent, which may drive it negative
// and throttle subsequent MaxBurstNow calls until replenished.
func (p *Pacer) Consume(size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bucket -= size
}
