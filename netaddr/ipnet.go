package netaddr

import "net/netip"

// IPNet is an address plus a prefix length in bits, with a flag
// distinguishing a single-host address (prefix == family width) from a true
// network (spec §3). Invariant: a stored network always has its host bits
// cleared — NewIPNet enforces this by masking on construction.
type IPNet struct {
	addr    Address
	bits    int
	isAddr  bool
}

// NewIPNet builds a network from an address and prefix length, masking the
// host bits. bits==familyWidth marks it a single-host address.
func NewIPNet(a Address, bits int) IPNet {
	p := netip.PrefixFrom(a.addr, bits).Masked()
	width := 32
	if a.Family() == V6 {
		width = 128
	}
	return IPNet{addr: Address{addr: p.Addr()}, bits: bits, isAddr: bits == width}
}

// NewHostAddr builds a single-host IPNet (prefix == family width).
func NewHostAddr(a Address) IPNet {
	width := 32
	if a.Family() == V6 {
		width = 128
	}
	return NewIPNet(a, width)
}

func (n IPNet) Addr() Address { return n.addr }
func (n IPNet) Bits() int     { return n.bits }
func (n IPNet) IsHost() bool  { return n.isAddr }
func (n IPNet) Family() Family {
	return n.addr.Family()
}

// Prefix returns the equivalent netip.Prefix, for interop with cidrtree.
func (n IPNet) Prefix() netip.Prefix {
	return netip.PrefixFrom(n.addr.addr, n.bits)
}

// NetIPNet adapts a netip.Prefix into an IPNet.
func NetIPNet(p netip.Prefix) IPNet {
	return NewIPNet(Address{addr: p.Addr()}, p.Bits())
}

// Contains reports whether address a falls within network n. Families must
// match (an IPv4-mapped IPv6 address counts as V6) or this returns false.
func (n IPNet) Contains(a Address) bool {
	if n.addr.Family() != a.Family() {
		return false
	}
	return n.Prefix().Contains(a.addr)
}

func (n IPNet) String() string {
	if n.isAddr {
		return n.addr.String()
	}
	return n.Prefix().String()
}

// Endpoint is (network, port) — spec §3: a family-width network with
// nonzero port denotes a concrete address:port; a narrower network denotes
// "any address in this net, this port".
type Endpoint struct {
	Net  IPNet
	Port uint16
}

func (e Endpoint) String() string {
	return e.Net.String() + ":" + itoa(int(e.Port))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
