package policer

import "errors"

var (
	// ErrExists is returned by Add when the requested name is already
	// registered, matching VNET_API_ERROR_VALUE_EXIST.
	ErrExists = errors.New("policer: name already exists")
	// ErrInvalid is returned when a logical config fails validation or
	// overflows during conversion to runtime state, matching
	// VNET_API_ERROR_INVALID_VALUE.
	ErrInvalid = errors.New("policer: invalid configuration")
	// ErrNotFound is returned when an index names no policer, matching
	// VNET_API_ERROR_NO_SUCH_ENTRY.
	ErrNotFound = errors.New("policer: not found")
	// ErrWorkerInvalid is returned by Bind when the worker index exceeds
	// the known worker count, matching VNET_API_ERROR_INVALID_WORKER.
	ErrWorkerInvalid = errors.New("policer: invalid worker index")
)
