package procfs

import (
	"strings"

	"github.com/stackrox/collector/netaddr"
)

const (
	containerIDLength      = 64
	shortContainerIDLength = 12
)

// isContainerID reports whether s is a 64-character hex string (either case;
// the extracted short ID is lowercased by the caller).
func isContainerID(s string) bool {
	if len(s) != containerIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// extractContainerIDFromCgroup implements the exact extraction rule of
// original_source/collector/lib/Utility.cpp ExtractContainerIDFromCgroup:
// strip an optional trailing ".scope", reject a cgroup whose preceding
// component is "-conmon" (the OCI runtime's own monitor container), then
// require the last 65 bytes to be "[/-]<64 hex chars>" and return the first
// 12 hex characters as the short container ID.
func extractContainerIDFromCgroup(cgroup string) (netaddr.ContainerID, bool) {
	if len(cgroup) < containerIDLength+1 {
		return "", false
	}

	if scope := strings.LastIndex(cgroup, ".scope"); scope != -1 {
		cgroup = cgroup[:scope]
		if len(cgroup) < containerIDLength+1 {
			return "", false
		}
	}

	containerIDPart := cgroup[len(cgroup)-(containerIDLength+1):]
	if containerIDPart[0] != '/' && containerIDPart[0] != '-' {
		return "", false
	}

	cgroup = cgroup[:len(cgroup)-(containerIDLength+1)]
	// conmon runs as its own container; ignore it.
	if strings.HasSuffix(cgroup, "-conmon") {
		return "", false
	}

	containerIDPart = containerIDPart[1:]
	if !isContainerID(containerIDPart) {
		return "", false
	}
	return netaddr.ContainerID(strings.ToLower(containerIDPart[:shortContainerIDLength])), true
}

// extractContainerID parses a single line of /proc/<pid>/cgroup — of the
// form "<hierarchy-id>:<controller-list>:<cgroup-path>" — by isolating the
// third colon-separated field and running it through
// extractContainerIDFromCgroup (spec §4.3 step 2).
func extractContainerID(cgroupLine string) (netaddr.ContainerID, bool) {
	start := repFindIndex(cgroupLine, ':', 2)
	if start == -1 {
		return "", false
	}
	return extractContainerIDFromCgroup(cgroupLine[start+1:])
}

// repFindIndex applies strings.IndexByte n times, each time advancing past
// the previously found byte, mirroring the original's rep_find.
func repFindIndex(s string, c byte, n int) int {
	if n <= 0 {
		return -1
	}
	pos := 0
	for n > 1 {
		idx := strings.IndexByte(s[pos:], c)
		if idx == -1 {
			return -1
		}
		pos += idx + 1
		n--
	}
	idx := strings.IndexByte(s[pos:], c)
	if idx == -1 {
		return -1
	}
	return pos + idx
}
