package tracker

import (
	"net/netip"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stackrox/collector/cidrtree"
	"github.com/stackrox/collector/netaddr"
)

func mustAddr(t *testing.T, s string) netaddr.Address {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return netaddr.AddrFromNetip(a)
}

func mustHostNet(t *testing.T, s string) netaddr.IPNet {
	return netaddr.NewHostAddr(mustAddr(t, s))
}

func mustPrefix(t *testing.T, s string) netaddr.IPNet {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return netaddr.NetIPNet(p)
}

func TestUpdateThenFetchMarksInactive(t *testing.T) {
	tr := New(0)

	conn := netaddr.Connection{
		Container: "abc123abc123",
		Local:     netaddr.Endpoint{Net: mustHostNet(t, "10.0.1.32"), Port: 54321},
		Remote:    netaddr.Endpoint{Net: mustHostNet(t, "139.45.27.4"), Port: 443},
		Proto:     netaddr.ProtoTCP,
		IsServer:  false,
	}

	tr.Update([]netaddr.Connection{conn}, nil, 1_000_000)
	snap := tr.FetchConnState(1_000_000, false, false)
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1", len(snap))
	}
	for _, e := range snap {
		if !e.status.IsActive() {
			t.Errorf("expected active after first Update")
		}
	}

	// second Update with no observations: entry should go inactive, not vanish.
	tr.Update(nil, nil, 2_000_000)
	snap = tr.FetchConnState(2_000_000, false, false)
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1 (still present but inactive)", len(snap))
	}
	for _, e := range snap {
		if e.status.IsActive() {
			t.Errorf("expected inactive after second Update with no observations")
		}
	}
}

func TestNormalizeUDPRoleInferredFromEphemerality(t *testing.T) {
	tr := New(0)
	// local port 50000 is more ephemeral (IsEphemeral==4) than remote port 53
	// (IsEphemeral==0): local should be inferred CLIENT, i.e. is_server=false.
	conn := netaddr.Connection{
		Container: "abc123abc123",
		Local:     netaddr.Endpoint{Net: mustHostNet(t, "10.0.0.5"), Port: 50000},
		Remote:    netaddr.Endpoint{Net: mustHostNet(t, "8.8.8.8"), Port: 53},
		Proto:     netaddr.ProtoUDP,
		IsServer:  true, // scraper guessed wrong; normalization must override
	}
	tr.Update([]netaddr.Connection{conn}, nil, 1_000_000)
	snap := tr.FetchConnState(1_000_000, true, false)
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1", len(snap))
	}
	for _, e := range snap {
		if e.conn.IsServer {
			t.Errorf("expected is_server=false for the more-ephemeral local port")
		}
		if e.conn.Remote.Port != 0 {
			t.Errorf("remote port = %d, want 0 (always zeroed)", e.conn.Remote.Port)
		}
		if e.conn.Local != (netaddr.Endpoint{}) {
			t.Errorf("client-role local endpoint should be fully zeroed, got %+v", e.conn.Local)
		}
	}
}

func TestNormalizeRemoteClassification(t *testing.T) {
	tr := New(0)
	tree := cidrtree.New()
	if err := tree.Insert(mustPrefix(t, "139.45.0.0/16")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	tr.UpdateKnownNetworks(tree)

	serverConn := netaddr.Connection{
		Container: "abc123abc123",
		Local:     netaddr.Endpoint{Net: mustHostNet(t, "10.0.0.5"), Port: 8080},
		Remote:    netaddr.Endpoint{Net: mustHostNet(t, "139.45.27.4"), Port: 54321},
		Proto:     netaddr.ProtoTCP,
		IsServer:  true,
	}
	tr.Update([]netaddr.Connection{serverConn}, nil, 1_000_000)
	snap := tr.FetchConnState(1_000_000, true, false)
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1", len(snap))
	}
	for _, e := range snap {
		if e.conn.Remote.Net.String() != "139.45.0.0/16" {
			t.Errorf("remote net = %s, want 139.45.0.0/16", e.conn.Remote.Net.String())
		}
		if e.conn.Local.Port != 8080 {
			t.Errorf("server local port = %d, want 8080 preserved", e.conn.Local.Port)
		}
		if !e.conn.Local.Net.Addr().Netip().IsUnspecified() {
			t.Errorf("server local addr should collapse to any-address, got %s", e.conn.Local.Net)
		}
	}
}

// TestAfterglowSuppressesFlapUntilExpiry drives spec §8 scenario 4 end to
// end through the public Update/FetchConnState contract rather than the
// unexported applyAfterglowOnTransition helper, so it exercises the same
// nowMicros plumbing the notifier's tick() relies on.
func TestAfterglowSuppressesFlapUntilExpiry(t *testing.T) {
	tr := New(5 * time.Second)
	conn := netaddr.Connection{
		Container: "abc123abc123",
		Local:     netaddr.Endpoint{Net: mustHostNet(t, "10.0.0.5"), Port: 1234},
		Remote:    netaddr.Endpoint{Net: mustHostNet(t, "8.8.8.8"), Port: 443},
		Proto:     netaddr.ProtoTCP,
	}
	key := conn.Key()

	tr.Update([]netaddr.Connection{conn}, nil, 1_000_000)
	tr.Update(nil, nil, 2_000_000) // connection vanishes from this scrape

	tr.mu.Lock()
	raw, ok := tr.rawConns[key]
	tr.mu.Unlock()
	if !ok {
		t.Fatalf("raw entry missing")
	}
	if raw.status.IsActive() {
		t.Fatalf("raw status should already be false before afterglow")
	}

	withinGrace := tr.FetchConnState(2_100_000, false, false)
	e, ok := withinGrace[key]
	if !ok || !e.status.IsActive() {
		t.Errorf("expected afterglow to report active=true within the grace period, got present=%v active=%v", ok, e.status.IsActive())
	}

	afterExpiry := tr.FetchConnState(2_100_000+6_000_000, false, false)
	e2, ok := afterExpiry[key]
	if !ok || e2.status.IsActive() {
		t.Errorf("expected afterglow to report active=false once the grace period elapses, got present=%v active=%v", ok, e2.status.IsActive())
	}
}

func TestComputeDeltaFourCases(t *testing.T) {
	keyA := netaddr.ConnKey{Container: "a", Local: "l1", Remote: "r1"}
	keyB := netaddr.ConnKey{Container: "b", Local: "l2", Remote: "r2"}
	keyC := netaddr.ConnKey{Container: "c", Local: "l3", Remote: "r3"}
	keyD := netaddr.ConnKey{Container: "d", Local: "l4", Remote: "r4"}

	old := ConnMap{
		keyA: {status: NewConnStatus(100, true)},  // both active -> omit
		keyB: {status: NewConnStatus(100, true)},  // active->inactive -> include
		keyC: {status: NewConnStatus(100, false)}, // only in old, inactive -> drop
		keyD: {status: NewConnStatus(100, true)},  // only in old, active -> close
	}
	newState := ConnMap{
		keyA: {status: NewConnStatus(200, true)},
		keyB: {status: NewConnStatus(200, false)},
	}

	out := ComputeDelta(newState, old)

	if _, present := out[keyA]; present {
		t.Errorf("keyA (both active) should be omitted from the delta")
	}
	if e, present := out[keyB]; !present || e.status.IsActive() {
		t.Errorf("keyB should be included as inactive, got present=%v active=%v", present, e.status.IsActive())
	}
	if _, present := out[keyC]; present {
		t.Errorf("keyC (only in old, already inactive) should be dropped")
	}
	if e, present := out[keyD]; !present || e.status.IsActive() {
		t.Errorf("keyD (only in old, was active) should be included as closed (inactive)")
	}
}

func TestComputeDeltaInactiveNewerTimestampIncluded(t *testing.T) {
	key := netaddr.ConnKey{Container: "a", Local: "l1", Remote: "r1"}
	old := ConnMap{key: {status: NewConnStatus(100, false)}}
	newState := ConnMap{key: {status: NewConnStatus(200, false)}}

	out := ComputeDelta(newState, old)
	e, present := out[key]
	if !present {
		t.Fatalf("expected inclusion when new inactive timestamp is newer")
	}
	if e.status.LastActiveTime() != 200 {
		t.Errorf("expected merged entry to carry the newer timestamp, got %d", e.status.LastActiveTime())
	}

	old2 := ConnMap{key: {status: NewConnStatus(300, false)}}
	new2 := ConnMap{key: {status: NewConnStatus(200, false)}}
	out2 := ComputeDelta(new2, old2)
	if _, present := out2[key]; present {
		t.Errorf("stale inactive timestamp should be omitted")
	}
}

func TestConnStatusMergeFromPrefersActive(t *testing.T) {
	active := NewConnStatus(100, true)
	inactive := NewConnStatus(900, false)
	if got := inactive.MergeFrom(active); !got.IsActive() {
		t.Errorf("MergeFrom should prefer active regardless of timestamp")
	}
	if diff := deep.Equal(active.MergeFrom(active), active); diff != nil {
		t.Errorf("merging equal active statuses changed the value: %v", diff)
	}
}
