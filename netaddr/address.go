// Package netaddr provides the value types shared by the scraper, tracker,
// and notifier: addresses, CIDR networks, endpoints, connections, and
// listen-endpoints, plus the normalization primitives (containment,
// ephemerality, locality) that those packages build on.
//
// Addresses are stored as netip.Addr rather than a raw 128-bit buffer;
// netip.Addr already keeps IPv4 canonically representable as an
// IPv4-mapped IPv6 address via As16/Unmap, which is exactly the layout
// the spec calls for.
package netaddr

import (
	"fmt"
	"net/netip"
)

// Family is the address family tag.
type Family uint8

const (
	Unknown Family = iota
	V4
	V6
)

func (f Family) String() string {
	switch f {
	case V4:
		return "v4"
	case V6:
		return "v6"
	default:
		return "unknown"
	}
}

// Address wraps netip.Addr with the family tag this module uses throughout
// (netip.Addr already distinguishes 4-in-6 from bare v4, but callers of this
// package think in terms of the tagged union the spec describes).
type Address struct {
	addr netip.Addr
}

// AddrFromV4 builds an Address from 4 bytes in network order.
func AddrFromV4(b [4]byte) Address {
	return Address{addr: netip.AddrFrom4(b)}
}

// AddrFromV6 builds an Address from 16 bytes in network order.
func AddrFromV6(b [16]byte) Address {
	return Address{addr: netip.AddrFrom16(b)}
}

// AddrFromNetip adapts a netip.Addr into an Address.
func AddrFromNetip(a netip.Addr) Address {
	return Address{addr: a}
}

// AnyAddr returns the all-zero address of the given family.
func AnyAddr(f Family) Address {
	switch f {
	case V4:
		return Address{addr: netip.IPv4Unspecified()}
	case V6:
		return Address{addr: netip.IPv6Unspecified()}
	default:
		return Address{}
	}
}

// Sentinel "some unknown public host" addresses (spec §3, §9 Open Questions:
// kept pluggable as a constant pair rather than a distinguished enum variant).
var (
	SentinelV4 = Address{addr: netip.AddrFrom4([4]byte{255, 255, 255, 255})}
	SentinelV6 = Address{addr: netip.MustParseAddr("ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")}
)

// IsValid reports whether the address was ever assigned a value.
func (a Address) IsValid() bool { return a.addr.IsValid() }

// Family reports the address's family. An IPv4-mapped IPv6 address (the
// form ToV6 returns) reports V6.
func (a Address) Family() Family {
	switch {
	case !a.addr.IsValid():
		return Unknown
	case a.addr.Is4():
		return V4
	default:
		return V6
	}
}

// Netip returns the underlying netip.Addr.
func (a Address) Netip() netip.Addr { return a.addr }

// ToV6 returns the IPv4-mapped ::ffff:0:0/96 form of a, unchanged if already
// v6.
func (a Address) ToV6() Address {
	if a.Family() == V4 {
		return Address{addr: netip.AddrFrom16(a.addr.As16())}
	}
	return a
}

// IsLocal reports whether a falls in 127.0.0.0/8, ::1, or
// ::ffff:127.0.0.0/104.
func (a Address) IsLocal() bool {
	if !a.addr.IsValid() {
		return false
	}
	u := a.addr.Unmap()
	return u.IsLoopback()
}

var (
	private4 = mustParsePrefixes(
		"10.0.0.0/8",
		"100.64.0.0/10",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.168.0.0/16",
	)
	private6 = mustParsePrefixes(
		"fd00::/8",
		"fe80::/10",
	)
)

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// IsPrivate reports whether a is an RFC1918/CGN/link-local/ULA address (the
// complement half of is_public, per spec §3).
func (a Address) IsPrivate() bool {
	if !a.addr.IsValid() {
		return false
	}
	u := a.addr.Unmap()
	list := private4
	if u.Is6() {
		list = private6
	}
	for _, p := range list {
		if p.Contains(u) {
			return true
		}
	}
	return false
}

// IsPublic is the complement of IsLocal and IsPrivate.
func (a Address) IsPublic() bool {
	if !a.addr.IsValid() {
		return false
	}
	return !a.IsLocal() && !a.IsPrivate()
}

// Sentinel returns the family-appropriate "some unknown public host"
// address.
func (a Address) Sentinel() Address {
	if a.Family() == V4 {
		return SentinelV4
	}
	return SentinelV6
}

func (a Address) String() string {
	if !a.addr.IsValid() {
		return "<nil>"
	}
	return a.addr.String()
}

// IsEphemeral returns a small confidence integer for port p, per spec §4.1:
//
//	>= 49152        -> 4 (IANA ephemeral range)
//	32768..49151    -> 3 (modern Linux ephemeral range)
//	1025..5000      -> 2 (legacy BSD/Windows ephemeral range)
//	1024            -> 1
//	otherwise       -> 0
func IsEphemeral(p uint16) int {
	switch {
	case p >= 49152:
		return 4
	case p >= 32768:
		return 3
	case p >= 1025 && p <= 5000:
		return 2
	case p == 1024:
		return 1
	default:
		return 0
	}
}

// L4Proto is the layer-4 protocol of a connection or endpoint.
type L4Proto uint8

const (
	ProtoUnknown L4Proto = iota
	ProtoTCP
	ProtoUDP
	ProtoICMP
)

func (p L4Proto) String() string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	case ProtoICMP:
		return "ICMP"
	default:
		return "UNKNOWN"
	}
}

// ParseAddress parses "host:port" with an integer port in (0, 65535].
func ParseAddress(s string) (host string, port uint16, err error) {
	ap, err := netip.ParseAddrPort(s)
	if err == nil {
		if ap.Port() == 0 {
			return "", 0, fmt.Errorf("netaddr: port must be in (0, 65535], got 0 in %q", s)
		}
		return ap.Addr().String(), ap.Port(), nil
	}
	return "", 0, fmt.Errorf("netaddr: invalid host:port %q: %w", s, err)
}

// ParseAddressList parses a comma-separated list of "host:port" pairs.
func ParseAddressList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := s[start:i]
			if _, _, err := ParseAddress(part); err != nil {
				return nil, err
			}
			out = append(out, part)
			start = i + 1
		}
	}
	return out, nil
}
