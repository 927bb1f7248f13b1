package netaddr

// ContainerID is a 12-lowercase-hex-character short container ID (spec §3,
// §4.3), extracted from a cgroup path by the procfs package. It is always an
// owned value, never a slice into a transient read buffer (spec §9
// "unsafe raw-pointer container IDs").
type ContainerID string

// Connection is (container_id, local endpoint, remote endpoint, l4proto,
// is_server). Hash/equality includes all five fields — Key returns a value
// usable as a map key for exactly that reason.
type Connection struct {
	Container ContainerID
	Local     Endpoint
	Remote    Endpoint
	Proto     L4Proto
	IsServer  bool
}

// ConnKey is the map key used by the tracker: all five fields of Connection
// folded into a comparable struct.
type ConnKey struct {
	Container ContainerID
	Local     string
	Remote    string
	Proto     L4Proto
	IsServer  bool
}

// Key returns the map key for c.
func (c Connection) Key() ConnKey {
	return ConnKey{
		Container: c.Container,
		Local:     c.Local.String(),
		Remote:    c.Remote.String(),
		Proto:     c.Proto,
		IsServer:  c.IsServer,
	}
}

// ContainerEndpoint is (container_id, endpoint, l4proto) for listeners.
type ContainerEndpoint struct {
	Container ContainerID
	Endpoint  Endpoint
	Proto     L4Proto
}

// EndpointKey is the map key used by the tracker for listen endpoints.
type EndpointKey struct {
	Container ContainerID
	Endpoint  string
	Proto     L4Proto
}

// Key returns the map key for e.
func (e ContainerEndpoint) Key() EndpointKey {
	return EndpointKey{
		Container: e.Container,
		Endpoint:  e.Endpoint.String(),
		Proto:     e.Proto,
	}
}

// IsRelevantConnection reports whether c should be kept by the scraper: the
// remote endpoint must not be a loopback address (spec §4.3 step 7, §8
// boundary behavior "Connection with remote 127.0.0.1: excluded").
func IsRelevantConnection(c Connection) bool {
	return !c.Remote.Net.Addr().IsLocal()
}

// IsRelevantEndpoint reports whether e should be kept: its address must not
// be loopback (spec §4.4 "For listen endpoints: drop entries whose address
// is_local()").
func IsRelevantEndpoint(e ContainerEndpoint) bool {
	return !e.Endpoint.Net.Addr().IsLocal()
}
