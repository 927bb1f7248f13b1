package tracker

import (
	"sync"
	"time"

	"github.com/stackrox/collector/cidrtree"
	"github.com/stackrox/collector/netaddr"
)

// connEntry is a raw (pre-normalization) observation plus its packed
// status. The tracker keeps the raw Connection rather than a
// normalize-at-insert-time tuple (as original_source/ConnTracker.cpp does)
// specifically so that update_known_networks/update_known_public_ips can
// renormalize every live entry exactly — see the "Open Questions" entry in
// DESIGN.md for why the literal original's insert-time normalization can't
// support that.
type connEntry struct {
	conn   netaddr.Connection
	status ConnStatus
}

type endpointEntry struct {
	ep     netaddr.ContainerEndpoint
	status ConnStatus
}

// ConnMap is a normalized-tuple snapshot, as returned by FetchConnState.
type ConnMap map[netaddr.ConnKey]connEntry

// EndpointMap is a normalized-tuple snapshot, as returned by
// FetchEndpointState.
type EndpointMap map[netaddr.EndpointKey]endpointEntry

// Tracker is the connection/endpoint tracker (C4): state map with liveness
// flags, normalization, CIDR classification, afterglow, and delta
// computation, guarded by a single lock (spec §4.4, §5).
type Tracker struct {
	mu sync.Mutex

	rawConns     map[netaddr.ConnKey]connEntry
	rawEndpoints map[netaddr.EndpointKey]endpointEntry

	knownNetworks  *cidrtree.Tree
	knownPublicIPs map[string]struct{}

	// afterglow holds, per raw connection key, the expiry time of the grace
	// period during which an active->inactive transition is suppressed
	// (spec §4.4 "Afterglow").
	afterglow       map[netaddr.ConnKey]int64
	afterglowPeriod time.Duration
}

// New returns an empty Tracker. afterglowPeriod == 0 disables afterglow.
func New(afterglowPeriod time.Duration) *Tracker {
	return &Tracker{
		rawConns:        make(map[netaddr.ConnKey]connEntry),
		rawEndpoints:    make(map[netaddr.EndpointKey]endpointEntry),
		knownNetworks:   cidrtree.New(),
		knownPublicIPs:  make(map[string]struct{}),
		afterglow:       make(map[netaddr.ConnKey]int64),
		afterglowPeriod: afterglowPeriod,
	}
}

// emplaceOrUpdateConn mirrors original_source's EmplaceOrUpdateNoLock: the
// new status replaces the stored one only if its timestamp is newer. Called
// under mu.
func (t *Tracker) emplaceOrUpdateConn(conn netaddr.Connection, status ConnStatus) {
	key := conn.Key()
	existing, ok := t.rawConns[key]
	if !ok || status.LastActiveTime() > existing.status.LastActiveTime() {
		t.rawConns[key] = connEntry{conn: conn, status: status}
	}
}

func (t *Tracker) emplaceOrUpdateEndpoint(ep netaddr.ContainerEndpoint, status ConnStatus) {
	key := ep.Key()
	existing, ok := t.rawEndpoints[key]
	if !ok || status.LastActiveTime() > existing.status.LastActiveTime() {
		t.rawEndpoints[key] = endpointEntry{ep: ep, status: status}
	}
}

// Update is the bulk scrape merge (spec §4.4 contract, item 1): mark every
// current entry inactive, then insert-or-update every observation as
// active at now.
func (t *Tracker) Update(conns []netaddr.Connection, endpoints []netaddr.ContainerEndpoint, nowMicros int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, e := range t.rawConns {
		e.status = e.status.WithStatus(false)
		t.rawConns[k] = e
	}
	for k, e := range t.rawEndpoints {
		e.status = e.status.WithStatus(false)
		t.rawEndpoints[k] = e
	}

	newStatus := NewConnStatus(nowMicros, true)
	for _, c := range conns {
		t.emplaceOrUpdateConn(c, newStatus)
		t.touchAfterglow(c.Key(), nowMicros)
	}
	for _, e := range endpoints {
		t.emplaceOrUpdateEndpoint(e, newStatus)
	}
}

// AddConnection is the event-driven variant used by the syscall-driver path
// (spec §6).
func (t *Tracker) AddConnection(conn netaddr.Connection, tsMicros int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emplaceOrUpdateConn(conn, NewConnStatus(tsMicros, true))
	t.touchAfterglow(conn.Key(), tsMicros)
}

// RemoveConnection is the event-driven variant storing active=false at ts.
func (t *Tracker) RemoveConnection(conn netaddr.Connection, tsMicros int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emplaceOrUpdateConn(conn, NewConnStatus(tsMicros, false))
}

// touchAfterglow resets the afterglow expiry for key (called whenever a
// fresh active observation arrives — spec §4.4 Afterglow, condition (a):
// "a fresh observation arrives (reset)").
func (t *Tracker) touchAfterglow(key netaddr.ConnKey, nowMicros int64) {
	delete(t.afterglow, key)
}

// applyAfterglowOnTransition is called whenever a raw connection's computed
// active-ness is about to be reported as false; it returns the effective
// active-ness after afterglow is applied, recording a fresh expiry the
// first time the transition is observed.
func (t *Tracker) applyAfterglowOnTransition(key netaddr.ConnKey, rawActive bool, nowMicros int64, lastActive int64) bool {
	if t.afterglowPeriod <= 0 {
		return rawActive
	}
	if rawActive {
		delete(t.afterglow, key)
		return true
	}
	expiresAt, held := t.afterglow[key]
	if !held {
		expiresAt = lastActive + t.afterglowPeriod.Microseconds()
		t.afterglow[key] = expiresAt
	}
	if nowMicros > expiresAt {
		delete(t.afterglow, key)
		return false
	}
	return true
}

// UpdateKnownNetworks swaps the known-networks tree atomically (spec §4.4
// "update_known_networks ... swap atomically; trigger a renormalization of
// every existing entry").
func (t *Tracker) UpdateKnownNetworks(tree *cidrtree.Tree) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.knownNetworks = tree
}

// UpdateKnownPublicIPs swaps the known-public-IP set atomically.
func (t *Tracker) UpdateKnownPublicIPs(ips []netaddr.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip.String()] = struct{}{}
	}
	t.knownPublicIPs = set
}

// FetchConnState returns a normalized-tuple snapshot (spec §4.4
// fetch_conn_state). nowMicros drives the afterglow-expiry check, the same
// way Update/AddConnection/RemoveConnection take their timestamp from the
// caller rather than calling time.Now() themselves. When normalize is true,
// normalization is reapplied to every raw entry using the tracker's current
// known-networks tree and public-IP set. Colliding normalized keys (distinct
// raw connections that normalize to the same tuple) are merged via
// ConnStatus.MergeFrom. When clearInactive is true, inactive raw entries are
// removed from the live state after the snapshot is built, except those still
// held active by an unexpired afterglow period.
func (t *Tracker) FetchConnState(nowMicros int64, normalize, clearInactive bool) ConnMap {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(ConnMap, len(t.rawConns))
	for key, e := range t.rawConns {
		status := e.status
		if t.afterglowPeriod > 0 && !status.IsActive() {
			effective := t.applyAfterglowOnTransition(key, false, nowMicros, status.LastActiveTime())
			status = status.WithStatus(effective)
		}
		conn := e.conn
		if normalize {
			conn = t.normalizeConnectionLocked(conn)
		}
		nk := conn.Key()
		if existing, ok := out[nk]; ok {
			out[nk] = connEntry{conn: conn, status: existing.status.MergeFrom(status)}
		} else {
			out[nk] = connEntry{conn: conn, status: status}
		}
	}

	if clearInactive {
		for key, e := range t.rawConns {
			if !e.status.IsActive() {
				if _, held := t.afterglow[key]; held {
					continue // still inside its afterglow grace period
				}
				delete(t.rawConns, key)
			}
		}
	}
	return out
}

// FetchEndpointState returns a normalized-tuple snapshot of listen
// endpoints, analogous to FetchConnState. nowMicros is accepted for
// signature symmetry with FetchConnState/Update/AddConnection/
// RemoveConnection even though listen endpoints carry no afterglow state.
func (t *Tracker) FetchEndpointState(nowMicros int64, normalize, clearInactive bool) EndpointMap {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(EndpointMap, len(t.rawEndpoints))
	for _, e := range t.rawEndpoints {
		ep := e.ep
		if normalize {
			normalized, ok := normalizeEndpoint(ep)
			if !ok {
				continue
			}
			ep = normalized
		}
		nk := ep.Key()
		if existing, ok := out[nk]; ok {
			out[nk] = endpointEntry{ep: ep, status: existing.status.MergeFrom(e.status)}
		} else {
			out[nk] = endpointEntry{ep: ep, status: e.status}
		}
	}

	if clearInactive {
		for key, e := range t.rawEndpoints {
			if !e.status.IsActive() {
				delete(t.rawEndpoints, key)
			}
		}
	}
	return out
}
