//go:build linux

package procfs

import "golang.org/x/sys/unix"

// statINode fetches the inode number behind a procfs magic symlink (e.g.
// /proc/<pid>/ns/net or /proc/<pid>/fd/<n>) via stat(2), which follows the
// link and works regardless of how the kernel happens to format the
// symlink's text target. Returns ok=false on any stat error, so readINode
// falls back to parseLinkINode and a
// fd that disappears mid-scrape (spec §4.3 step 6) is handled the same
// way on every platform.
func statINode(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Ino), true
}
