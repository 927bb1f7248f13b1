package tracker

import "github.com/stackrox/collector/netaddr"

// normalizeConnectionLocked implements spec §4.4 "Normalization" for
// connections. Must be called with t.mu held.
func (t *Tracker) normalizeConnectionLocked(conn netaddr.Connection) netaddr.Connection {
	isServer := conn.IsServer
	if conn.Proto == netaddr.ProtoUDP {
		// UDP has no LISTEN table, so role is inferred from port
		// ephemerality: the more-ephemeral side is the client (spec §4.4
		// step 1, scenario 5). This matches the TCP scraper's own
		// LocalIsServer fallback (ephemeral(remote) > ephemeral(local) =>
		// local is server), which is the opposite comparison from
		// original_source/ConnTracker.cpp's UDP override — the original's
		// formula disagrees with its own TCP scraper and with every worked
		// example in the spec, so the scraper's (and spec's) direction is
		// what's implemented here.
		isServer = netaddr.IsEphemeral(conn.Remote.Port) > netaddr.IsEphemeral(conn.Local.Port)
	}

	remoteNet := t.normalizeAddressLocked(conn.Remote.Net.Addr())
	remote := netaddr.Endpoint{Net: remoteNet, Port: 0}

	var local netaddr.Endpoint
	if isServer {
		local = netaddr.Endpoint{
			Net:  netaddr.NewHostAddr(netaddr.AnyAddr(conn.Local.Net.Family())),
			Port: conn.Local.Port,
		}
	} else {
		local = netaddr.Endpoint{}
	}

	return netaddr.Connection{
		Container: conn.Container,
		Local:     local,
		Remote:    remote,
		Proto:     conn.Proto,
		IsServer:  isServer,
	}
}

// normalizeAddressLocked implements spec §4.4 step 2 "Remote address
// classification". Must be called with t.mu held.
func (t *Tracker) normalizeAddressLocked(addr netaddr.Address) netaddr.IPNet {
	if net, ok := t.knownNetworks.FindAddr(addr); ok {
		return net
	}
	if addr.IsPrivate() {
		return netaddr.NewHostAddr(addr)
	}
	if _, ok := t.knownPublicIPs[addr.String()]; ok {
		return netaddr.NewHostAddr(addr)
	}
	return netaddr.NewHostAddr(addr.Sentinel())
}

// normalizeEndpoint implements spec §4.4 "For listen endpoints": drop
// entries whose address is_local(); otherwise zero the address (listen-on
// -any is canonical) and keep port+protocol.
func normalizeEndpoint(ep netaddr.ContainerEndpoint) (netaddr.ContainerEndpoint, bool) {
	if ep.Endpoint.Net.Addr().IsLocal() {
		return netaddr.ContainerEndpoint{}, false
	}
	return netaddr.ContainerEndpoint{
		Container: ep.Container,
		Endpoint: netaddr.Endpoint{
			Net:  netaddr.NewHostAddr(netaddr.AnyAddr(ep.Endpoint.Net.Family())),
			Port: ep.Endpoint.Port,
		},
		Proto: ep.Proto,
	}, true
}
