package l2fib

import "errors"

var (
	// ErrNotFound is returned by Del when no entry exists for the given
	// MAC and bridge domain.
	ErrNotFound = errors.New("l2fib: entry not found")
	// ErrMismatch is returned by Del when the caller's expected
	// interface does not match the entry's current interface.
	ErrMismatch = errors.New("l2fib: sw_if_index mismatch")
	// ErrUnknownBridgeDomain names a bridge-domain index with no
	// registered BridgeDomainConfig. No Table operation returns it: they
	// accept an unknown index and skip its per-domain bookkeeping.
	ErrUnknownBridgeDomain = errors.New("l2fib: unknown bridge domain")
	// ErrResourceExhausted is returned when inserting a new key would
	// exceed the table's configured memory budget.
	ErrResourceExhausted = errors.New("l2fib: resource exhausted")
)
