package pacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MinBurstBytes:   4096,
		MaxBurstBytes:   4 << 20,
		BurstsPerRTT:    4,
		SecondsPerLoop:  1e-3,
		LoopFrequencyHz: 1000,
	}
}

func TestInitSetsPaced(t *testing.T) {
	p := New(testConfig())
	assert.False(t, p.Paced())

	p.Init(0, 1_000_000, 1000)
	assert.True(t, p.Paced())
	assert.EqualValues(t, 1000, p.Bucket())
}

func TestUpdateClampsMaxBurstToConfiguredRange(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 1_000_000, 0)

	p.Update(1_000_000, 40_000) // rtt 40ms, bursts_per_rtt=4 => 10ms, clamped to a 1000us window
	mb := p.MaxBurst()
	assert.GreaterOrEqual(t, mb, testConfig().MinBurstBytes)
	assert.LessOrEqual(t, mb, testConfig().MaxBurstBytes)
}

func TestMaxBurstNowMonotonicWithoutConsume(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 10_000_000, 0) // 10MB/s
	p.Update(10_000_000, 20_000)

	var last int64 = -1
	for _, now := range []int64{0, 1000, 5000, 20000, 100000} {
		b := p.MaxBurstNow(now)
		assert.GreaterOrEqual(t, int64(b), last)
		last = int64(b)
	}
}

func TestConsumeDrivesBucketNegativeAndThrottles(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 1_000_000, 2000)
	p.Update(1_000_000, 20_000)

	p.Consume(5000)
	assert.Less(t, p.Bucket(), int64(0))
	assert.EqualValues(t, 0, p.MaxBurstNow(0))
}

func TestResetForcesBucketAndLastUpdate(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 1_000_000, 2000)
	p.Consume(1500)
	require.Less(t, p.Bucket(), int64(2000))

	p.Reset(500, 2_000_000, 20_000, 777)
	assert.EqualValues(t, 777, p.Bucket())
	assert.EqualValues(t, 500, p.lastUpdate)
}

func TestBucketNeverExceedsMaxBurst(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 50_000_000, 0)
	p.Update(50_000_000, 4_000)

	for now := int64(0); now <= 1_000_000; now += 5000 {
		b := p.MaxBurstNow(now)
		assert.LessOrEqual(t, p.Bucket(), int64(b))
	}
}

type fakeQueue struct{ pending int64 }

func (f fakeQueue) PendingBytes() int64 { return f.pending }

type fakeScheduler struct {
	rescheduled bool
	cleared     bool
}

func (f *fakeScheduler) RequestReschedule() { f.rescheduled = true }
func (f *fakeScheduler) ClearEvent()        { f.cleared = true }

func TestRescheduleWithPendingBytesRequestsRearm(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 1_000_000, 500)
	p.SetDescheduled()

	sched := &fakeScheduler{}
	p.Reschedule(fakeQueue{pending: 10}, sched)

	assert.False(t, p.Descheduled())
	assert.EqualValues(t, 0, p.Bucket())
	assert.True(t, sched.rescheduled)
	assert.False(t, sched.cleared)
}

func TestRescheduleWithNoPendingBytesClearsEvent(t *testing.T) {
	p := New(testConfig())
	p.Init(0, 1_000_000, 500)
	p.SetDescheduled()

	sched := &fakeScheduler{}
	p.Reschedule(fakeQueue{pending: 0}, sched)

	assert.True(t, sched.cleared)
	assert.False(t, sched.rescheduled)
}
