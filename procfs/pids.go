package procfs

import (
	"os"
	"strconv"
)

// listPIDs returns the numeric <pid> subdirectory names directly under
// procPath, in the style of the teacher's namespaces.listNetworkNamespaces
// (which walks the same directory filtering subdir names through
// strconv.Atoi to recognize PIDs) — adapted here to just enumerate PIDs
// rather than poll for namespace changes, since this scraper does one full
// pass per Scrape() call instead of watching continuously.
func listPIDs(procPath string) ([]string, error) {
	d, err := os.Open(procPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	names, err := d.Readdirnames(0)
	if err != nil {
		return nil, err
	}

	pids := names[:0]
	for _, name := range names {
		if _, err := strconv.Atoi(name); err != nil {
			continue
		}
		pids = append(pids, name)
	}
	return pids, nil
}
