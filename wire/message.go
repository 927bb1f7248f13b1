// Package wire holds the messages exchanged with the RPC aggregator over
// the bidirectional streaming PushNetworkConnectionInfo call (spec §6), a
// hand-rolled protobuf-wire-compatible codec for them, and the gRPC service
// plumbing.
//
// There is no .proto file or protoc-gen-go step here: the wire layout below
// is a small, fixed schema (seven message types, no protobuf extensions or
// oneofs beyond the optional close_timestamp), so it's encoded and decoded
// directly against the protobuf wire format in codec.go rather than pulling
// in a full code generator for seven structs.
package wire

import "github.com/stackrox/collector/netaddr"

// Family mirrors spec §6 Address.family.
type Family uint8

const (
	FamilyV4 Family = iota
	FamilyV6
)

// Role mirrors spec §6 Conn.role.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// Address is spec §6's Address: either a concrete address (IsHost true,
// PrefixBits == family width) or a classified network (IsHost false).
type Address struct {
	Family     Family
	Bytes      []byte // 4 bytes for V4, 16 for V6
	PrefixBits uint32
	IsHost     bool
	Port       uint16
}

// AddressFromIPNet converts an in-process netaddr.IPNet + port into the wire
// Address representation. A zero-value/invalid network (e.g. the CLIENT-side
// Local of a normalized connection, spec §8 scenario 1's "local=null") comes
// back as an Address with only Port set rather than touching As4/As16, both
// of which panic on an invalid netip.Addr.
func AddressFromIPNet(n netaddr.IPNet, port uint16) Address {
	if !n.Addr().IsValid() {
		return Address{Port: port}
	}
	family := FamilyV4
	var b []byte
	if n.Family() == netaddr.V6 {
		family = FamilyV6
		a16 := n.Addr().ToV6().Netip().As16()
		b = a16[:]
	} else {
		a4 := n.Addr().Netip().As4()
		b = a4[:]
	}
	return Address{
		Family:     family,
		Bytes:      append([]byte(nil), b...),
		PrefixBits: uint32(n.Bits()),
		IsHost:     n.IsHost(),
		Port:       port,
	}
}

// Conn is spec §6's Conn.
type Conn struct {
	ContainerID       string
	Local             Address
	Remote            Address
	Protocol          netaddr.L4Proto
	Role              Role
	CloseTimestamp    int64
	HasCloseTimestamp bool
}

// Endpoint is spec §6's Endpoint.
type Endpoint struct {
	ContainerID       string
	Address           Address
	Protocol          netaddr.L4Proto
	CloseTimestamp    int64
	HasCloseTimestamp bool
}

// Message is spec §6's Message: one PushNetworkConnectionInfo frame.
type Message struct {
	UpdatedConnections []Conn
	UpdatedEndpoints   []Endpoint
	TimeMicros         int64
}

// IPNetworks is spec §4.5/§6's control message carrying a fixed-width-record
// CIDR list, consumed directly by cidrtree.BuildFromRecords.
type IPNetworks struct {
	V4 []byte
	V6 []byte
}

// PublicIPs is spec §6's control message carrying the known-public-IP set.
type PublicIPs struct {
	List []Address
}

// ControlMessage is the inbound frame on the same stream (spec §6 "Control
// messages"): exactly one of Networks/PublicIPs is set per frame.
type ControlMessage struct {
	Networks  *IPNetworks
	PublicIPs *PublicIPs
}
