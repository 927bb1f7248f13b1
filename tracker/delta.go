package tracker

import "github.com/stackrox/collector/netaddr"

// ComputeDelta mutates old into the delta to send and returns it, following
// original_source/collector/lib/ConnTracker.h's templated ComputeDelta
// (spec §4.4 compute_delta):
//
//   - key in both, both active            -> omit
//   - key in both, activity differs       -> include with the new status
//   - key in both, both inactive, newer ts -> include with new; else omit
//   - key only in new                     -> include (add)
//   - key only in old, was active         -> mark inactive, include (close)
//   - key only in old, already inactive   -> drop
func ComputeDelta(newState, old ConnMap) ConnMap {
	for key, e := range newState {
		oldEntry, existed := old[key]
		if !existed {
			old[key] = e
			continue
		}
		switch {
		case e.status.IsActive() != oldEntry.status.IsActive():
			old[key] = e
		case e.status.IsActive():
			delete(old, key)
		default:
			if oldEntry.status.LastActiveTime() < e.status.LastActiveTime() {
				old[key] = e
			} else {
				delete(old, key)
			}
		}
	}

	for key, e := range old {
		if _, stillPresent := newState[key]; stillPresent {
			continue
		}
		if e.status.IsActive() {
			e.status = e.status.WithStatus(false)
			old[key] = e
		} else {
			delete(old, key)
		}
	}
	return old
}

// ComputeEndpointDelta is ComputeDelta's analogue for endpoint snapshots.
func ComputeEndpointDelta(newState, old EndpointMap) EndpointMap {
	for key, e := range newState {
		oldEntry, existed := old[key]
		if !existed {
			old[key] = e
			continue
		}
		switch {
		case e.status.IsActive() != oldEntry.status.IsActive():
			old[key] = e
		case e.status.IsActive():
			delete(old, key)
		default:
			if oldEntry.status.LastActiveTime() < e.status.LastActiveTime() {
				old[key] = e
			} else {
				delete(old, key)
			}
		}
	}

	for key, e := range old {
		if _, stillPresent := newState[key]; stillPresent {
			continue
		}
		if e.status.IsActive() {
			e.status = e.status.WithStatus(false)
			old[key] = e
		} else {
			delete(old, key)
		}
	}
	return old
}

// ConnDelta is one reportable connection change: its current normalized
// tuple, liveness, and last-observed time (wire/ serializes these).
type ConnDelta struct {
	Conn         netaddr.Connection
	Active       bool
	LastActiveAt int64
}

// EndpointDelta is ConnDelta's analogue for listen endpoints.
type EndpointDelta struct {
	Endpoint     netaddr.ContainerEndpoint
	Active       bool
	LastActiveAt int64
}

// Connections flattens m into the deltas to serialize.
func (m ConnMap) Connections() []ConnDelta {
	out := make([]ConnDelta, 0, len(m))
	for _, e := range m {
		out = append(out, ConnDelta{
			Conn:         e.conn,
			Active:       e.status.IsActive(),
			LastActiveAt: e.status.LastActiveTime(),
		})
	}
	return out
}

// Endpoints flattens m into the deltas to serialize.
func (m EndpointMap) Endpoints() []EndpointDelta {
	out := make([]EndpointDelta, 0, len(m))
	for _, e := range m {
		out = append(out, EndpointDelta{
			Endpoint:     e.ep,
			Active:       e.status.IsActive(),
			LastActiveAt: e.status.LastActiveTime(),
		})
	}
	return out
}
