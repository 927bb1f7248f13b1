package procfs

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stackrox/collector/netaddr"
	"github.com/stackrox/collector/tcpstate"
)

// connLineData is the subset of a single net/tcp[6] line this package
// cares about.
type connLineData struct {
	local  netaddr.Endpoint
	remote netaddr.Endpoint
	state  tcpstate.State
	inode  uint64
}

// parseHexAddr decodes the 8 (v4) or 32 (v6) hex characters of an
// address field into network-order bytes. The kernel prints each 32-bit
// "chunk" of the address in host byte order, so on a little-endian host
// (every supported platform) each 4-byte chunk must be reversed — this
// mirrors original_source's ReadHexBytes(..., reverse=needs_byteorder_swap).
func parseHexAddr(s string, family netaddr.Family) (netaddr.Address, bool) {
	n := 4
	if family == netaddr.V6 {
		n = 16
	}
	if len(s) != n*2 {
		return netaddr.Address{}, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return netaddr.Address{}, false
	}
	// Reverse each 4-byte chunk (the kernel's native uint32 word order).
	for chunk := 0; chunk < n; chunk += 4 {
		for i, j := chunk, chunk+3; i < j; i, j = i+1, j-1 {
			raw[i], raw[j] = raw[j], raw[i]
		}
	}
	if family == netaddr.V4 {
		var b [4]byte
		copy(b[:], raw)
		return netaddr.AddrFromV4(b), true
	}
	var b [16]byte
	copy(b[:], raw)
	return netaddr.AddrFromV6(b), true
}

// parseEndpointField parses one "ADDR:PORT" field (hex address, hex port).
func parseEndpointField(field string, family netaddr.Family) (netaddr.Endpoint, bool) {
	colon := strings.IndexByte(field, ':')
	if colon == -1 {
		return netaddr.Endpoint{}, false
	}
	addr, ok := parseHexAddr(field[:colon], family)
	if !ok {
		return netaddr.Endpoint{}, false
	}
	portVal, err := strconv.ParseUint(field[colon+1:], 16, 16)
	if err != nil {
		return netaddr.Endpoint{}, false
	}
	width := 32
	if family == netaddr.V6 {
		width = 128
	}
	return netaddr.Endpoint{
		Net:  netaddr.NewIPNet(addr, width),
		Port: uint16(portVal),
	}, true
}

// parseConnLine parses one non-header net/tcp[6] line: sl local_address
// rem_address st tx_queue:rx_queue tr:tm->when retrnsmt uid timeout inode
// ... (spec §4.3 step 5).
func parseConnLine(line string, family netaddr.Family) (connLineData, bool) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return connLineData{}, false
	}
	local, ok := parseEndpointField(fields[1], family)
	if !ok {
		return connLineData{}, false
	}
	remote, ok := parseEndpointField(fields[2], family)
	if !ok {
		return connLineData{}, false
	}
	stateVal, err := strconv.ParseUint(fields[3], 16, 8)
	if err != nil {
		return connLineData{}, false
	}
	inode, err := strconv.ParseUint(fields[9], 10, 64)
	if err != nil {
		return connLineData{}, false
	}
	return connLineData{
		local:  local,
		remote: remote,
		state:  tcpstate.State(stateVal),
		inode:  inode,
	}, true
}

// localIsServer decides is_server for an ESTABLISHED connection (spec §4.3
// step 5): local is a known listen endpoint (exact, or on the "any" address
// for that port), else fall back to ephemeral-port comparison.
func localIsServer(local, remote netaddr.Endpoint, listenSet map[string]struct{}) bool {
	if _, ok := listenSet[local.String()]; ok {
		return true
	}
	anyLocal := netaddr.Endpoint{
		Net:  netaddr.NewHostAddr(netaddr.AnyAddr(local.Net.Family())),
		Port: local.Port,
	}
	if _, ok := listenSet[anyLocal.String()]; ok {
		return true
	}
	return netaddr.IsEphemeral(remote.Port) > netaddr.IsEphemeral(local.Port)
}

type connInfo struct {
	local, remote netaddr.Endpoint
	proto         netaddr.L4Proto
	isServer      bool
}

type endpointInfo struct {
	endpoint netaddr.Endpoint
	proto    netaddr.L4Proto
}

// readConnectionsFromFile reads one net/tcp[6] file (the header line is
// skipped), populating connections and listenEndpoints keyed by inode.
func readConnectionsFromFile(r io.Reader, family netaddr.Family, proto netaddr.L4Proto, connections map[uint64]connInfo, listenEndpoints map[uint64]endpointInfo) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 64*1024)
	if !sc.Scan() {
		return fmt.Errorf("procfs: empty net/tcp file")
	}
	listenSet := make(map[string]struct{})
	for sc.Scan() {
		data, ok := parseConnLine(sc.Text(), family)
		if !ok {
			continue
		}
		switch {
		case data.state.IsListen():
			listenSet[data.local.String()] = struct{}{}
			if data.inode != 0 {
				listenEndpoints[data.inode] = endpointInfo{endpoint: data.local, proto: proto}
			}
		case data.state.IsEstablished():
			if data.inode == 0 {
				continue
			}
			connections[data.inode] = connInfo{
				local:    data.local,
				remote:   data.remote,
				proto:    proto,
				isServer: localIsServer(data.local, data.remote, listenSet),
			}
		default:
			// any other state is skipped, per spec §4.3 step 5.
		}
	}
	return sc.Err()
}

// nativeByteOrder is unused directly (parseHexAddr always reverses,
// matching every little-endian platform this agent targets) but kept to
// document the assumption explicitly for readers porting to a big-endian
// host.
var nativeByteOrder = binary.LittleEndian
