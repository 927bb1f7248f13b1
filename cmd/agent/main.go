// Command agent is the core network observability daemon: it scrapes
// procfs, tracks connection/endpoint state, and streams deltas to an
// aggregator over PushNetworkConnectionInfo, until SIGTERM/SIGINT.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/stackrox/collector/netprobe"
	"github.com/stackrox/collector/notifier"
	"github.com/stackrox/collector/procfs"
	"github.com/stackrox/collector/tracker"
	"github.com/stackrox/collector/wire"
	"github.com/stackrox/collector/worker"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	procRoot        = flag.String("proc", "/proc", "procfs root to scrape")
	scrapeInterval  = flag.Duration("interval", 30*time.Second, "scrape/send tick interval")
	afterglowPeriod = flag.Duration("afterglow", 0, "afterglow grace period (0 disables)")
	aggregatorAddr  = flag.String("aggregator", "", "aggregator address (host:port) for PushNetworkConnectionInfo")
)

func dial(addr string) notifier.Dialer {
	return func(ctx context.Context) (notifier.StreamSink, error) {
		cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		stream, err := wire.NewPushNetworkConnectionInfoClient(ctx, cc)
		if err != nil {
			cc.Close()
			return nil, err
		}
		return &streamSink{stream: stream, conn: cc}, nil
	}
}

// streamSink adapts wire.Stream (Send/Recv) plus the owning *grpc.ClientConn
// into notifier.StreamSink, which additionally needs Close.
type streamSink struct {
	stream wire.Stream
	conn   *grpc.ClientConn
}

func (s *streamSink) Send(m *wire.Message) error          { return s.stream.Send(m) }
func (s *streamSink) Recv() (*wire.ControlMessage, error) { return s.stream.Recv() }
func (s *streamSink) Close() error                        { return s.conn.Close() }

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	rtx.Must(requireFlag(*aggregatorAddr, "aggregator"), "missing required flag")

	if _, err := os.Stat(*procRoot); err != nil {
		rtx.Must(err, "procfs root %s is not accessible", *procRoot)
	}

	aggregatorHost, aggregatorPort := splitAggregatorAddr(*aggregatorAddr)

	scraper := procfs.New(*procRoot)
	t := tracker.New(*afterglowPeriod)
	n := notifier.New(scraper, t, dial(*aggregatorAddr), notifier.WithInterval(*scrapeInterval))

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Println("agent: received signal", sig, "shutting down")
		cancel()
	}()

	// Block startup on one successful reach of the aggregator (spec:
	// connectivity probe "used for readiness gating"), then keep reporting
	// reachability for the life of the process (...and "health reporting").
	waitForAggregator(ctx, aggregatorHost, aggregatorPort)

	health := worker.New()
	health.Start(ctx, func(ctx context.Context) {
		runHealthChecks(ctx, aggregatorHost, aggregatorPort)
	})

	notify := worker.New()
	notify.Start(ctx, n.Run)

	<-ctx.Done()
	notify.Stop()
	health.Stop()
}

// splitAggregatorAddr parses the -aggregator host:port flag for the
// connectivity probe, which (unlike grpc.NewClient) needs the host and port
// apart.
func splitAggregatorAddr(addr string) (string, uint16) {
	host, portStr, err := net.SplitHostPort(addr)
	rtx.Must(err, "invalid -aggregator address %q", addr)
	port, err := strconv.ParseUint(portStr, 10, 16)
	rtx.Must(err, "invalid -aggregator port in %q", addr)
	return host, uint16(port)
}

// waitForAggregator blocks until the aggregator is reachable or ctx is
// canceled, backing off between attempts via worker.Pause.
func waitForAggregator(ctx context.Context, host string, port uint16) {
	for {
		status, err := netprobe.CheckConnectivity(ctx, host, port, 5*time.Second)
		if status == netprobe.StatusOK {
			log.Println("agent: aggregator", net.JoinHostPort(host, strconv.Itoa(int(port))), "is reachable")
			return
		}
		if status == netprobe.StatusInterrupted {
			return
		}
		log.Println("agent: aggregator not yet reachable:", err)
		if !worker.Pause(ctx, 5*time.Second) {
			return
		}
	}
}

// runHealthChecks re-probes the aggregator periodically for the life of the
// process, logging reachability changes (spec: connectivity probe "used
// for ... health reporting").
func runHealthChecks(ctx context.Context, host string, port uint16) {
	lastOK := true
	for worker.Pause(ctx, 30*time.Second) {
		status, err := netprobe.CheckConnectivity(ctx, host, port, 5*time.Second)
		ok := status == netprobe.StatusOK
		if ok != lastOK {
			if ok {
				log.Println("agent: aggregator connectivity restored")
			} else {
				log.Println("agent: aggregator unreachable:", err)
			}
			lastOK = ok
		}
	}
}

func requireFlag(v, name string) error {
	if v == "" {
		return flagRequiredError(name)
	}
	return nil
}

type flagRequiredError string

func (e flagRequiredError) Error() string { return "flag -" + string(e) + " is required" }
