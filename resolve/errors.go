package resolve

import "errors"

// Sentinel errors returned by every public operation. Internal packages
// return their own wrapped errors (internal/dnswire.ErrProtocol,
// internal/transport.ErrIO, internal/cancelgate.ErrTimeoutCause/
// ErrCancelledCause); the boundary in resolver.go maps those to the ones
// below with errors.Is/errors.As, the same wrap-then-translate shape used
// around every transport call in this module.
var (
	// ErrArgument is returned synchronously, before any network activity,
	// for an invalid address family or an over-length name.
	ErrArgument = errors.New("resolve: invalid argument")

	// ErrTimeout is returned when a call's linked timeout fires during a
	// suspension point.
	ErrTimeout = errors.New("resolve: timeout")

	// ErrCancelled is returned when the caller's context or the resolver's
	// cancellation gate fires during a suspension point.
	ErrCancelled = errors.New("resolve: cancelled")

	// ErrProtocol is returned for a malformed or mismatched response: bad
	// name encoding, header mismatch, truncated TCP body, echoed question
	// that doesn't match what was sent.
	ErrProtocol = errors.New("resolve: protocol error")

	// ErrIO is returned for a transport failure (dial/send/receive).
	ErrIO = errors.New("resolve: i/o error")
)
