// Package procfs is the connection scraper (spec §4.3, C3): one pass over
// /proc/<pid>/{cgroup,ns/net,fd,net/tcp,net/tcp6} producing connection and
// listen-endpoint lists keyed by container short-ID.
//
// Grounded on original_source/collector/lib/ProcfsScraper.cpp
// (ReadContainerConnections, ResolveSocketInodes). The original opens each
// <pid> directory once and does every subsequent read relative to that
// dirfd; Go's os package has no public openat, so each helper here instead
// joins a path under the <pid> directory and opens it directly — slower per
// syscall, but the same "per-pid directory" semantics.
package procfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-lab/go/logx"

	"github.com/stackrox/collector/netaddr"
)

var throttledLog = logx.NewLogEvery(nil, 10*time.Second)

func logThrottled(format string, args ...interface{}) {
	throttledLog.Println(fmt.Sprintf(format, args...))
}

// Scraper is the external-facing contract (spec §9: "the tracker↔notifier
// boundary is expressed as two narrow traits... a Scraper and a
// StreamSink").
type Scraper interface {
	Scrape() (conns []netaddr.Connection, listeners []netaddr.ContainerEndpoint, err error)
}

// ProcScraper reads a procfs root (typically /host/proc on a host-mounted
// container) every time Scrape is called.
type ProcScraper struct {
	ProcPath string
}

// New returns a ProcScraper rooted at procPath (default "/proc").
func New(procPath string) *ProcScraper {
	if procPath == "" {
		procPath = "/proc"
	}
	return &ProcScraper{ProcPath: procPath}
}

type nsNetworkData struct {
	connections     map[uint64]connInfo
	listenEndpoints map[uint64]endpointInfo
}

type socketInfo struct {
	inode uint64
	pid   uint64
}

// Scrape implements Scraper (spec §4.3 steps 1-7).
func (s *ProcScraper) Scrape() ([]netaddr.Connection, []netaddr.ContainerEndpoint, error) {
	names, err := listPIDs(s.ProcPath)
	if err != nil {
		return nil, nil, fmt.Errorf("procfs: could not open %s: %w", s.ProcPath, err)
	}

	connsByNS := make(map[uint64]*nsNetworkData)
	// container -> netns -> set of sockets (by inode)
	socketsByContainer := make(map[netaddr.ContainerID]map[uint64]map[uint64]socketInfo)

	for _, name := range names {
		pid, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		s.scrapePID(pid, name, connsByNS, socketsByContainer)
	}

	conns, listeners := resolveSocketInodes(socketsByContainer, connsByNS)
	return conns, listeners, nil
}

func (s *ProcScraper) scrapePID(
	pid uint64,
	dirName string,
	connsByNS map[uint64]*nsNetworkData,
	socketsByContainer map[netaddr.ContainerID]map[uint64]map[uint64]socketInfo,
) {
	pidDir := filepath.Join(s.ProcPath, dirName)

	if state, ok := readProcessState(pidDir); ok && isZombie(state) {
		return
	}

	containerID, ok := readContainerID(pidDir)
	if !ok {
		return // non-container process, ignore
	}

	netnsInode, ok := readNetworkNamespace(pidDir)
	if !ok {
		logThrottled("procfs: could not determine network namespace for pid %s", dirName)
		return
	}

	byNS, ok := socketsByContainer[containerID]
	if !ok {
		byNS = make(map[uint64]map[uint64]socketInfo)
		socketsByContainer[containerID] = byNS
	}
	sockets, hadSockets := byNS[netnsInode]
	if !hadSockets {
		sockets = make(map[uint64]socketInfo)
	}
	noSocketsBefore := len(sockets) == 0

	newSockets, err := readSocketINodes(pidDir, pid)
	if err != nil {
		logThrottled("procfs: could not read socket inodes for pid %s: %v", dirName, err)
		return
	}
	for inode, info := range newSockets {
		sockets[inode] = info
	}
	byNS[netnsInode] = sockets

	if noSocketsBefore && len(sockets) > 0 {
		if _, known := connsByNS[netnsInode]; !known {
			nsData := &nsNetworkData{
				connections:     make(map[uint64]connInfo),
				listenEndpoints: make(map[uint64]endpointInfo),
			}
			if err := readNetNSConnections(pidDir, nsData); err != nil {
				// Disambiguate a persistent failure from the process having
				// disappeared mid-read (spec §4.3 step 6): re-read the netns
				// inode; if it's gone or changed, silently discard.
				netnsInode2, ok2 := readNetworkNamespace(pidDir)
				if !ok2 || netnsInode2 != netnsInode {
					return
				}
				logThrottled("procfs: error reading net/tcp[6] for pid %s: %v", dirName, err)
				return
			}
			connsByNS[netnsInode] = nsData
		}
	}
}

func readProcessState(pidDir string) (byte, bool) {
	b, err := os.ReadFile(filepath.Join(pidDir, "stat"))
	if err != nil {
		return 0, false
	}
	return extractProcessState(string(b))
}

func readContainerID(pidDir string) (netaddr.ContainerID, bool) {
	b, err := os.ReadFile(filepath.Join(pidDir, "cgroup"))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(b), "\n") {
		if line == "" {
			continue
		}
		if id, ok := extractContainerID(line); ok {
			return id, true
		}
	}
	return "", false
}

func readNetworkNamespace(pidDir string) (uint64, bool) {
	return readINode(filepath.Join(pidDir, "ns", "net"), "net")
}

// readINode identifies the magic symlink at path (a "net" or "socket" fd
// entry under procfs) by its inode number. statINode (build-tag split,
// see inode_linux.go/inode_other.go) does this via stat(2) where available;
// parseLinkINode is the portable fallback that parses the "<prefix>:[<n>]"
// textual link target procfs presents these symlinks as.
func readINode(path, prefix string) (uint64, bool) {
	if n, ok := statINode(path); ok {
		return n, true
	}
	return parseLinkINode(path, prefix)
}

func parseLinkINode(path, prefix string) (uint64, bool) {
	link, err := os.Readlink(path)
	if err != nil {
		return 0, false
	}
	if !strings.HasPrefix(link, prefix+":[") || !strings.HasSuffix(link, "]") {
		return 0, false
	}
	numStr := link[len(prefix)+2 : len(link)-1]
	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func readSocketINodes(pidDir string, pid uint64) (map[uint64]socketInfo, error) {
	fdDir := filepath.Join(pidDir, "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]socketInfo)
	for _, ent := range entries {
		name := ent.Name()
		if name == "" || name[0] < '0' || name[0] > '9' {
			continue
		}
		inode, ok := readINode(filepath.Join(fdDir, name), "socket")
		if !ok {
			continue
		}
		out[inode] = socketInfo{inode: inode, pid: pid}
	}
	return out, nil
}

func readNetNSConnections(pidDir string, nsData *nsNetworkData) error {
	err4 := readOneConnFile(filepath.Join(pidDir, "net", "tcp"), netaddr.V4, nsData)
	err6 := readOneConnFile(filepath.Join(pidDir, "net", "tcp6"), netaddr.V6, nsData)
	if err4 != nil {
		return err4
	}
	return err6
}

func readOneConnFile(path string, family netaddr.Family, nsData *nsNetworkData) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return readConnectionsFromFile(f, family, netaddr.ProtoTCP, nsData.connections, nsData.listenEndpoints)
}

// resolveSocketInodes joins (container -> netns -> socket-inodes) with
// (netns -> inode -> conn/listen info) to produce flat connection and
// listen-endpoint lists, dropping loopback remotes/addresses (spec §4.3
// step 7).
func resolveSocketInodes(
	socketsByContainer map[netaddr.ContainerID]map[uint64]map[uint64]socketInfo,
	connsByNS map[uint64]*nsNetworkData,
) ([]netaddr.Connection, []netaddr.ContainerEndpoint) {
	var conns []netaddr.Connection
	var listeners []netaddr.ContainerEndpoint

	for containerID, byNS := range socketsByContainer {
		for netnsInode, sockets := range byNS {
			nsData, ok := connsByNS[netnsInode]
			if !ok {
				continue
			}
			for inode := range sockets {
				if ci, ok := nsData.connections[inode]; ok {
					c := netaddr.Connection{
						Container: containerID,
						Local:     ci.local,
						Remote:    ci.remote,
						Proto:     ci.proto,
						IsServer:  ci.isServer,
					}
					if netaddr.IsRelevantConnection(c) {
						conns = append(conns, c)
					}
					continue
				}
				if ei, ok := nsData.listenEndpoints[inode]; ok {
					ce := netaddr.ContainerEndpoint{
						Container: containerID,
						Endpoint:  ei.endpoint,
						Proto:     ei.proto,
					}
					if netaddr.IsRelevantEndpoint(ce) {
						listeners = append(listeners, ce)
					}
				}
			}
		}
	}
	return conns, listeners
}
