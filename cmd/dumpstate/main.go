// Command dumpstate is a debug tool: point it at a procfs root and it
// prints one scrape's tracked connection state as CSV, mirroring the
// teacher's cmd/csvtool archive-to-CSV conversion. Listen endpoints are not
// printed.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/rtx"

	"github.com/stackrox/collector/procfs"
	"github.com/stackrox/collector/tracker"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	procRoot        = flag.String("proc", "/proc", "procfs root to scrape")
	afterglowPeriod = flag.Duration("afterglow", 0, "afterglow grace period (0 disables)")
)

// connRow is one CSV row describing a tracked connection.
type connRow struct {
	Container string `csv:"container_id"`
	Local     string `csv:"local"`
	Remote    string `csv:"remote"`
	Proto     string `csv:"protocol"`
	Role      string `csv:"role"`
	Active    bool   `csv:"active"`
	LastSeen  int64  `csv:"last_seen_micros"`
}

func toRows(snap tracker.ConnMap) []*connRow {
	rows := make([]*connRow, 0, len(snap))
	for _, d := range snap.Connections() {
		role := "CLIENT"
		if d.Conn.IsServer {
			role = "SERVER"
		}
		rows = append(rows, &connRow{
			Container: string(d.Conn.Container),
			Local:     d.Conn.Local.String(),
			Remote:    d.Conn.Remote.String(),
			Proto:     d.Conn.Proto.String(),
			Role:      role,
			Active:    d.Active,
			LastSeen:  d.LastActiveAt,
		})
	}
	return rows
}

func main() {
	flag.Parse()

	scraper := procfs.New(*procRoot)
	conns, listeners, err := scraper.Scrape()
	rtx.Must(err, "scrape of %s failed", *procRoot)

	t := tracker.New(*afterglowPeriod)
	now := time.Now().UnixMicro()
	t.Update(conns, listeners, now)

	snap := t.FetchConnState(now, true, false)
	rtx.Must(gocsv.Marshal(toRows(snap), os.Stdout), "could not write CSV")
}
