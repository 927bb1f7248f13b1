package notifier

import (
	"github.com/stackrox/collector/netaddr"
	"github.com/stackrox/collector/tracker"
	"github.com/stackrox/collector/wire"
)

// buildMessage serializes a pair of computed deltas into the outbound wire
// frame (spec §6 Message). Presence/absence of close_timestamp encodes
// active=false/true.
func buildMessage(connDelta tracker.ConnMap, endpointDelta tracker.EndpointMap, nowMicros int64) *wire.Message {
	msg := &wire.Message{TimeMicros: nowMicros}
	for _, d := range connDelta.Connections() {
		msg.UpdatedConnections = append(msg.UpdatedConnections, connToWire(d))
	}
	for _, d := range endpointDelta.Endpoints() {
		msg.UpdatedEndpoints = append(msg.UpdatedEndpoints, endpointToWire(d))
	}
	return msg
}

func connToWire(d tracker.ConnDelta) wire.Conn {
	role := wire.RoleClient
	if d.Conn.IsServer {
		role = wire.RoleServer
	}
	c := wire.Conn{
		ContainerID: string(d.Conn.Container),
		Local:       wire.AddressFromIPNet(d.Conn.Local.Net, d.Conn.Local.Port),
		Remote:      wire.AddressFromIPNet(d.Conn.Remote.Net, d.Conn.Remote.Port),
		Protocol:    d.Conn.Proto,
		Role:        role,
	}
	if !d.Active {
		c.CloseTimestamp = d.LastActiveAt
		c.HasCloseTimestamp = true
	}
	return c
}

func endpointToWire(d tracker.EndpointDelta) wire.Endpoint {
	e := wire.Endpoint{
		ContainerID: string(d.Endpoint.Container),
		Address:     wire.AddressFromIPNet(d.Endpoint.Endpoint.Net, d.Endpoint.Endpoint.Port),
		Protocol:    d.Endpoint.Proto,
	}
	if !d.Active {
		e.CloseTimestamp = d.LastActiveAt
		e.HasCloseTimestamp = true
	}
	return e
}

// addressFromWire converts an inbound control-message Address into the
// in-process representation (only the host-address case is meaningful for
// a known-public-IP list).
func addressFromWire(a wire.Address) netaddr.Address {
	switch a.Family {
	case wire.FamilyV6:
		var b [16]byte
		copy(b[:], a.Bytes)
		return netaddr.AddrFromV6(b)
	default:
		var b [4]byte
		copy(b[:], a.Bytes)
		return netaddr.AddrFromV4(b)
	}
}
