// Package netprobe is the interruptible connectivity probe (spec §4.6, C6):
// resolve a host, open a non-blocking connection, and report reachability
// within a deadline, abandoning early if interrupted.
//
// Grounded on original_source/collector/lib/Network.cpp's CheckConnectivity:
// gethostbyname -> non-blocking connect -> poll(sock_fd, interrupt_fd) with
// a deadline, returning OK/ERROR/INTERRUPTED. The poll-on-two-fds idiom is
// replaced with net.Dialer.DialContext racing ctx cancellation — Go's
// network stack already performs the non-blocking connect/poll internally,
// so context.Context substitutes for the raw interrupt fd (an Open Question
// resolution recorded in DESIGN.md) without reimplementing the poll loop.
package netprobe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Status is the outcome of a connectivity check.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInterrupted:
		return "INTERRUPTED"
	default:
		return "ERROR"
	}
}

// CheckConnectivity attempts a TCP connection to host:port, returning OK if
// it succeeds before timeout, ERROR on any resolution/connect/timeout
// failure (with err describing it), or INTERRUPTED if ctx is canceled
// first.
func CheckConnectivity(ctx context.Context, host string, port uint16, timeout time.Duration) (Status, error) {
	deadline := time.Now().Add(timeout)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		if ctx.Err() != nil {
			return StatusInterrupted, nil
		}
		return StatusError, err
	}
	conn.Close()
	return StatusOK, nil
}
