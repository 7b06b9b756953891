package device

import "errors"

// Failure kinds surfaced by the device layer and consumed with errors.Is.
var (
	// ErrDeviceQuery means a capability or resource-footprint query failed
	// or returned values no real device could report. Planning built on top
	// of such a query must abort; the error is never retried here.
	ErrDeviceQuery = errors.New("device query failed")

	// ErrConfigViolation means a requested kernel or launch configuration
	// exceeds a hard device limit (scratch, registers, lock-step width).
	ErrConfigViolation = errors.New("configuration violates device limits")

	// ErrAllocFailed means a device memory allocation could not be
	// satisfied. The current invocation must be abandoned; the process
	// can continue with other work.
	ErrAllocFailed = errors.New("device allocation failed")
)
