package l2fib

import "sync/atomic"

// atomicCounter is a uint32 tally safe for concurrent increment/decrement
// by forwarding workers while the ager overwrites it wholesale at the end
// of each scan pass (spec section 4.1's self-healing learn count).
type atomicCounter struct {
	v atomic.Uint32
}

func (c *atomicCounter) load() uint32 { return c.v.Load() }
func (c *atomicCounter) store(v uint32) { c.v.Store(v) }
func (c *atomicCounter) incr() { c.v.Add(1) }
func (c *atomicCounter) decrIfPositive() { decrementIfPositive(&c.v) }
