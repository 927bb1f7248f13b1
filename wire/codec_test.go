package wire

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stackrox/collector/netaddr"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := &Message{
		UpdatedConnections: []Conn{
			{
				ContainerID: "abc123abc123",
				Local:       Address{Family: FamilyV4, Bytes: []byte{10, 0, 0, 5}, PrefixBits: 32, IsHost: true, Port: 8080},
				Remote:      Address{Family: FamilyV4, Bytes: []byte{139, 45, 0, 0}, PrefixBits: 16, IsHost: false, Port: 0},
				Protocol:    netaddr.ProtoTCP,
				Role:        RoleServer,
			},
			{
				ContainerID:       "def456def456",
				Local:             Address{},
				Remote:            Address{Family: FamilyV4, Bytes: []byte{255, 255, 255, 255}, PrefixBits: 32, IsHost: true},
				Protocol:          netaddr.ProtoUDP,
				Role:              RoleClient,
				CloseTimestamp:    1234567,
				HasCloseTimestamp: true,
			},
		},
		UpdatedEndpoints: []Endpoint{
			{ContainerID: "abc123abc123", Address: Address{Family: FamilyV4, Bytes: []byte{0, 0, 0, 0}, PrefixBits: 32, IsHost: true, Port: 8080}, Protocol: netaddr.ProtoTCP},
		},
		TimeMicros: 99999,
	}

	b, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got := new(Message)
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := deep.Equal(got, msg); diff != nil {
		t.Errorf("round-trip mismatch: %v", diff)
	}
}

func TestControlMessageRoundTripNetworks(t *testing.T) {
	cm := &ControlMessage{
		Networks: &IPNetworks{
			V4: []byte{139, 45, 0, 0, 16},
			V6: []byte{},
		},
	}
	b, err := cm.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := new(ControlMessage)
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Networks == nil {
		t.Fatalf("expected Networks to round-trip, got nil")
	}
	if diff := deep.Equal(got.Networks.V4, cm.Networks.V4); diff != nil {
		t.Errorf("V4 mismatch: %v", diff)
	}
	if got.PublicIPs != nil {
		t.Errorf("expected PublicIPs to remain nil, got %+v", got.PublicIPs)
	}
}

func TestControlMessageRoundTripPublicIPs(t *testing.T) {
	cm := &ControlMessage{
		PublicIPs: &PublicIPs{
			List: []Address{
				{Family: FamilyV4, Bytes: []byte{8, 8, 8, 8}, PrefixBits: 32, IsHost: true},
				{Family: FamilyV6, Bytes: make([]byte, 16), PrefixBits: 128, IsHost: true},
			},
		},
	}
	b, err := cm.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := new(ControlMessage)
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.PublicIPs == nil || len(got.PublicIPs.List) != 2 {
		t.Fatalf("expected 2 public IPs to round-trip, got %+v", got.PublicIPs)
	}
}

func TestAddressFromIPNet(t *testing.T) {
	host := netaddr.NewHostAddr(netaddr.AddrFromV4([4]byte{10, 0, 0, 1}))
	a := AddressFromIPNet(host, 443)
	if a.Family != FamilyV4 || !a.IsHost || a.Port != 443 || a.PrefixBits != 32 {
		t.Errorf("unexpected wire address: %+v", a)
	}
}

// TestAddressFromIPNetZeroValue covers the CLIENT-role case (spec §8
// scenario 1: local=null): a zero-value netaddr.IPNet must not panic in
// As4/As16, and should come back as a zero wire Address with only Port set.
func TestAddressFromIPNetZeroValue(t *testing.T) {
	var zero netaddr.IPNet
	a := AddressFromIPNet(zero, 0)
	if a.Family != FamilyV4 || a.IsHost || a.Port != 0 || a.Bytes != nil || a.PrefixBits != 0 {
		t.Errorf("unexpected wire address for zero-value IPNet: %+v", a)
	}
}
