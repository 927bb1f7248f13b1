// Package tcpstate decodes the hex `st` column of /proc/<pid>/net/tcp[6]
// into the kernel's tcp_states values.
package tcpstate

import "fmt"

// State is one value of the fourth whitespace-separated field of a
// net/tcp[6] line, in uapi/linux/tcp.h's numbering.
type State int32

// Names match uapi/linux/tcp.h's enum, not Go naming conventions.
const (
	INVALID     State = 0
	ESTABLISHED State = 1
	SYN_SENT    State = 2
	SYN_RECV    State = 3
	FIN_WAIT1   State = 4
	FIN_WAIT2   State = 5
	TIME_WAIT   State = 6
	CLOSE       State = 7
	CLOSE_WAIT  State = 8
	LAST_ACK    State = 9
	LISTEN      State = 10
	CLOSING     State = 11
)

var stateName = map[State]string{
	0:  "INVALID",
	1:  "ESTABLISHED",
	2:  "SYN_SENT",
	3:  "SYN_RECV",
	4:  "FIN_WAIT1",
	5:  "FIN_WAIT2",
	6:  "TIME_WAIT",
	7:  "CLOSE",
	8:  "CLOSE_WAIT",
	9:  "LAST_ACK",
	10: "LISTEN",
	11: "CLOSING",
}

func (x State) String() string {
	s, ok := stateName[x]
	if !ok {
		return fmt.Sprintf("UNKNOWN_STATE_%d", x)
	}
	return s
}

// IsListen reports whether st denotes a TCP_LISTEN socket.
func (x State) IsListen() bool { return x == LISTEN }

// IsEstablished reports whether st denotes a TCP_ESTABLISHED socket.
func (x State) IsEstablished() bool { return x == ESTABLISHED }
