// Package hal defines the hardware abstraction layer contract the router
// control loop is built against: interface initialization, a monotonic
// clock, ARP resolution, and raw IPv4 frame receive/send. The router never
// talks to a NIC, a kernel socket, or a simulator directly; it only ever
// calls through this interface, so the same control loop runs unmodified
// against the in-memory test double in simhal and the Linux raw-socket
// implementation in rawhal.
package hal

import (
	"context"
	"time"
)

// HAL is the hardware abstraction the router control loop is written
// against. Implementations must be safe to call from a single goroutine
// only; the router never calls a HAL method concurrently with another call
// to the same HAL.
type HAL interface {
	// Init prepares the HAL for operation against the given local
	// addresses (network byte order, one per interface, index-aligned
	// with every other per-interface argument elsewhere in this
	// interface). debug enables implementation-specific verbose tracing.
	Init(ctx context.Context, debug bool, localAddrs []uint32) error

	// Ticks returns a monotonically increasing duration since some
	// implementation-defined epoch, used by the control loop only for
	// computing elapsed time between timer checks.
	Ticks() time.Duration

	// ArpGetMAC resolves the link-layer address for ipv4 (network byte
	// order) on interface ifIndex. ok is false if the address is not
	// currently resolvable.
	ArpGetMAC(ifIndex int, ipv4 uint32) (mac [6]byte, ok bool)

	// ReceiveIP waits up to timeout for a frame on any interface in
	// ifMask (bit i set means interface i is eligible) and copies it into
	// buf, returning the number of bytes written and the frame's
	// metadata. It returns (0, ..., nil) on timeout with no frame
	// available, and io.EOF when the HAL has been shut down and will
	// never produce another frame.
	ReceiveIP(ctx context.Context, ifMask uint32, buf []byte, timeout time.Duration) (n int, srcMAC, dstMAC [6]byte, ifIndex int, err error)

	// SendIP transmits buf out interface ifIndex toward link-layer
	// destination dstMAC. Errors are not retried by the HAL; the control
	// loop treats a send failure as transient and relies on the next
	// periodic update to repair state.
	SendIP(ifIndex int, buf []byte, dstMAC [6]byte) error
}
