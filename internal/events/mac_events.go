// Package events carries MAC learn/move/delete notifications from the
// L2-FIB ager to a single subscribed client, in bounded-size batches.
package events

import "fmt"

// Action identifies why a MAC showed up in an event batch.
type Action int

const (
	ActionAdd Action = iota
	ActionDelete
	ActionMove
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	case ActionMove:
		return "move"
	default:
		return "unknown"
	}
}

// MACEvent describes a single learned, moved, or aged-out MAC entry.
type MACEvent struct {
	MAC       [6]byte
	Action    Action
	SwIfIndex uint32
}

func (e MACEvent) String() string {
	return fmt.Sprintf("%x %s sw_if=%d", e.MAC, e.Action, e.SwIfIndex)
}

// Client is the single external subscriber the L2-FIB scanner publishes
// batched MAC events to. Deliver must not block: a full queue is
// back-pressure, and the caller drops the batch with a warning rather than
// waiting, per spec section 4.1.
type Client interface {
	Deliver(batch []MACEvent) (accepted bool)
}

// ChannelClient is an in-process Client backed by a buffered channel,
// grounded on the teacher's channel-subscriber pattern (non-blocking send,
// default case on a full channel).
type ChannelClient struct {
	PID uint32
	ch  chan []MACEvent
}

// NewChannelClient creates a client identified by pid with room for
// bufferSize pending batches.
func NewChannelClient(pid uint32, bufferSize int) *ChannelClient {
	return &ChannelClient{
		PID: pid,
		ch:  make(chan []MACEvent, bufferSize),
	}
}

// Deliver hands a batch to the subscriber without blocking.
func (c *ChannelClient) Deliver(batch []MACEvent) bool {
	cp := make([]MACEvent, len(batch))
	copy(cp, batch)
	select {
	case c.ch <- cp:
		return true
	default:
		return false
	}
}

// Events returns the channel of delivered batches for the subscriber to
// range over.
func (c *ChannelClient) Events() <-chan []MACEvent {
	return c.ch
}
