package endpoint

import "errors"

var (
	// ErrInUse is returned by MarkUsed when the (proto, fib, ip, port)
	// tuple is already registered.
	ErrInUse = errors.New("endpoint: address in use")
	// ErrNotFound is returned by Share and Release when no descriptor is
	// registered for the given tuple.
	ErrNotFound = errors.New("endpoint: not found")
	// ErrBusy is returned by Release when the descriptor's refcount was
	// already zero (a caller-side double release).
	ErrBusy = errors.New("endpoint: already released")
	// ErrNoRoute is returned when no FIB path exists to the remote
	// address during local-IP resolution.
	ErrNoRoute = errors.New("endpoint: no route to remote")
	// ErrNoInterface is returned when a resolved FIB path has no
	// resolving interface.
	ErrNoInterface = errors.New("endpoint: no resolving interface")
	// ErrNoIP is returned when the resolved outgoing interface has no
	// address of the requested address family.
	ErrNoIP = errors.New("endpoint: no local address on interface")
	// ErrNoPort is returned when the port allocator exhausts its
	// retries without finding a usable source port.
	ErrNoPort = errors.New("endpoint: no port available")
)
