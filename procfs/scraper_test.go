package procfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stackrox/collector/netaddr"
)

const longID = "abc123abc123abc123abc123abc123abc123abc123abc123abc123abc123ab"

// writePID builds a minimal /proc/<pid> tree: stat, cgroup, ns/net symlink,
// fd/ symlinks to sockets, and (optionally) net/tcp contents.
func writePID(t *testing.T, root string, pid int, state byte, cgroupLine string, netnsInode uint64, sockInodes []uint64, netTCP string) {
	t.Helper()
	dir := filepath.Join(root, itoa(pid))
	mustMkdir(t, dir)
	mustWriteFile(t, filepath.Join(dir, "stat"), []byte(itoa(pid)+" (cmd) "+string(state)+" 1 1 1"))
	mustWriteFile(t, filepath.Join(dir, "cgroup"), []byte(cgroupLine+"\n"))

	mustMkdir(t, filepath.Join(dir, "ns"))
	mustSymlink(t, "net:["+itoa64(netnsInode)+"]", filepath.Join(dir, "ns", "net"))

	mustMkdir(t, filepath.Join(dir, "fd"))
	for i, inode := range sockInodes {
		mustSymlink(t, "socket:["+itoa64(inode)+"]", filepath.Join(dir, "fd", itoa(i)))
	}

	mustMkdir(t, filepath.Join(dir, "net"))
	mustWriteFile(t, filepath.Join(dir, "net", "tcp"), []byte(netTCP))
	mustWriteFile(t, filepath.Join(dir, "net", "tcp6"), []byte(tcpHeader))
}

const tcpHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"

func mustMkdir(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWriteFile(t *testing.T, p string, b []byte) {
	t.Helper()
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustSymlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestScrapeListenAndEstablished(t *testing.T) {
	root := t.TempDir()

	// 0A = LISTEN, 01 = ESTABLISHED, in hex. Address/port are big-endian hex
	// as printed by the kernel; parseHexAddr reverses each 4-byte chunk to
	// undo the kernel's native-endian word layout.
	// 0.0.0.0:8080 (8080 = 0x1F90) listening, inode 100.
	listenLine := "   0: 00000000:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 100 1 0000000000000000 100 0 0 10 0\n"
	// 10.0.1.32:54321 -> 139.45.27.4:443 established, inode 200.
	// 10.0.1.32 = 0x0A000120, little-endian bytes reversed per 4-byte chunk -> hex "2001000A"
	// port 54321 = 0xD431
	// 139.45.27.4 = 0x8B2D1B04 -> reversed "041B2D8B"
	// port 443 = 0x01BB
	estLine := "   1: 2001000A:D431 041B2D8B:01BB 01 00000000:00000000 00:00000000 00000000     0        0 200 1 0000000000000000 100 0 0 10 0\n"
	netTCP := tcpHeader + listenLine + estLine

	writePID(t, root, 42, 'S', "4:memory:/docker/"+longID, 1000, []uint64{100, 200}, netTCP)

	s := New(root)
	conns, listeners, err := s.Scrape()
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(listeners) != 1 {
		t.Fatalf("got %d listeners, want 1: %+v", len(listeners), listeners)
	}
	if listeners[0].Endpoint.Port != 8080 {
		t.Errorf("listener port = %d, want 8080", listeners[0].Endpoint.Port)
	}
	if len(conns) != 1 {
		t.Fatalf("got %d conns, want 1: %+v", len(conns), conns)
	}
	c := conns[0]
	if c.Local.Port != 54321 || c.Remote.Port != 443 {
		t.Errorf("conn ports = %d/%d, want 54321/443", c.Local.Port, c.Remote.Port)
	}
	if c.Container != netaddr.ContainerID(longID[:12]) {
		t.Errorf("container = %q, want %q", c.Container, longID[:12])
	}
}

func TestScrapeSkipsZombie(t *testing.T) {
	root := t.TempDir()
	writePID(t, root, 7, 'Z', "4:memory:/docker/"+longID, 1, nil, tcpHeader)
	s := New(root)
	conns, listeners, err := s.Scrape()
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(conns) != 0 || len(listeners) != 0 {
		t.Errorf("expected nothing from a zombie process, got conns=%v listeners=%v", conns, listeners)
	}
}

func TestScrapeHeaderOnlyFile(t *testing.T) {
	root := t.TempDir()
	writePID(t, root, 7, 'S', "4:memory:/docker/"+longID, 1, []uint64{1}, tcpHeader)
	s := New(root)
	conns, listeners, err := s.Scrape()
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(conns) != 0 || len(listeners) != 0 {
		t.Errorf("header-only net/tcp should yield no entries, got conns=%v listeners=%v", conns, listeners)
	}
}
