package pacer

import "sync/atomic"

// TXQueue reports how many bytes a connection still has queued for
// transmission, consulted by Reschedule's double-check.
type TXQueue interface {
	PendingBytes() int64
}

// EventScheduler arms or disarms the event that wakes the connection's
// send path, grounded on the session layer's deschedule/reschedule event
// handling.
type EventScheduler interface {
	RequestReschedule()
	ClearEvent()
}

// deschedFlag tracks the TX-DESCHED flag outside of Pacer's own mutex:
// SetDescheduled only ever sets it and Reschedule only ever clears it,
// so a lock-free flag is enough.
type deschedFlag struct {
	v atomic.Bool
}

// Descheduled reports whether the connection's TX-DESCHED flag is set.
func (p *Pacer) Descheduled() bool {
	return p.desched.v.Load()
}

// SetDescheduled sets the TX-DESCHED flag, typically done by the send
// path when it runs out of bucket and yields the event loop.
func (p *Pacer) SetDescheduled() {
	p.desched.v.Store(true)
}

// Reschedule clears TX-DESCHED, resets the bucket to zero, and re-arms
// the connection's send event if there is still queued data — using a
// double-check after clearing the event to avoid losing a race against a
// producer that enqueues bytes concurrently.
func (p *Pacer) Reschedule(q TXQueue, sched EventScheduler) {
	p.mu.Lock()
	p.bucket = 0
	p.mu.Unlock()
	p.desched.v.Store(false)

	if q.PendingBytes() > 0 {
		sched.RequestReschedule()
		return
	}

	sched.ClearEvent()
	if q.PendingBytes() > 0 {
		sched.RequestReschedule()
	}
}
