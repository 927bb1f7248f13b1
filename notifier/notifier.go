// Package notifier is the status notifier (spec §4.5, C5): a long-lived
// cooperative worker that scrapes, updates the tracker, diffs successive
// snapshots, and streams the deltas to the aggregator, reconnecting with a
// fixed backoff on any stream failure.
//
// Grounded on the teacher's saver/saver.go (channel-driven worker loop
// owning its own state, log.Println throughout) and collector/collector.go
// (ticker-driven Run loop checking ctx.Err() at every iteration); the
// IDLE/CONNECTING/STREAMING/BACKOFF/STOPPING state machine itself is
// original_source/collector/lib/NetworkStatusNotifier.h's shape, adapted
// from a raw pthread+condvar loop to a single goroutine driven by
// context.Context cancellation.
package notifier

import (
	"context"
	"log"
	"time"

	"github.com/stackrox/collector/cidrtree"
	"github.com/stackrox/collector/netaddr"
	"github.com/stackrox/collector/procfs"
	"github.com/stackrox/collector/tracker"
	"github.com/stackrox/collector/wire"
)

// State is the notifier's state machine position (spec §4.5).
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateBackoff
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateBackoff:
		return "BACKOFF"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

const backoffPeriod = 5 * time.Second

// StreamSink is the RPC boundary the notifier drives; satisfied in production
// by cmd/agent's streamSink (a wire.Stream plus its *grpc.ClientConn), or by a
// fake in tests.
type StreamSink interface {
	Send(*wire.Message) error
	Recv() (*wire.ControlMessage, error)
	Close() error
}

// Dialer opens a fresh StreamSink; called once per CONNECTING attempt so a
// backoff-and-retry can simply call it again.
type Dialer func(ctx context.Context) (StreamSink, error)

// Metrics is the Prometheus-counters external collaborator named as
// out-of-scope by spec §1; the notifier calls these hooks without importing
// a metrics library itself.
type Metrics interface {
	ObserveTickDuration(time.Duration)
	IncDeltaSent(conns, endpoints int)
	IncScrapeError()
	IncStreamReconnect()
}

type noopMetrics struct{}

func (noopMetrics) ObserveTickDuration(time.Duration) {}
func (noopMetrics) IncDeltaSent(int, int)              {}
func (noopMetrics) IncScrapeError()                    {}
func (noopMetrics) IncStreamReconnect()                {}

// Notifier runs the scrape/send loop described in spec §4.5.
type Notifier struct {
	scraper  procfs.Scraper
	tracker  *tracker.Tracker
	dial     Dialer
	interval time.Duration
	metrics  Metrics

	state State

	oldConns     tracker.ConnMap
	oldEndpoints tracker.EndpointMap
}

// Option configures a Notifier at construction.
type Option func(*Notifier)

// WithMetrics installs a Metrics implementation; the default is a no-op.
func WithMetrics(m Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithInterval overrides the default 30s scrape/send tick interval.
func WithInterval(d time.Duration) Option {
	return func(n *Notifier) { n.interval = d }
}

// New builds a Notifier in the IDLE state.
func New(scraper procfs.Scraper, t *tracker.Tracker, dial Dialer, opts ...Option) *Notifier {
	n := &Notifier{
		scraper:      scraper,
		tracker:      t,
		dial:         dial,
		interval:     30 * time.Second,
		metrics:      noopMetrics{},
		state:        StateIdle,
		oldConns:     make(tracker.ConnMap),
		oldEndpoints: make(tracker.EndpointMap),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State reports the notifier's current state machine position.
func (n *Notifier) State() State { return n.state }

// Run drives the state machine until ctx is canceled (spec §4.5 "Stop() or
// signal" -> STOPPING). It never returns an error on ordinary stream
// failure; those transition to BACKOFF and retry.
func (n *Notifier) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			n.state = StateStopping
			log.Println("notifier: stopping")
			return
		}

		n.state = StateConnecting
		stream, err := n.dial(ctx)
		if err != nil {
			log.Println("notifier: connect failed:", err)
			n.state = StateBackoff
			if !n.sleep(ctx, backoffPeriod) {
				return
			}
			continue
		}

		n.state = StateStreaming
		n.metrics.IncStreamReconnect()
		if !n.streamLoop(ctx, stream) {
			stream.Close()
			n.state = StateStopping
			log.Println("notifier: stopping")
			return
		}
		stream.Close()
		n.state = StateBackoff
		if !n.sleep(ctx, backoffPeriod) {
			return
		}
	}
}

// sleep waits for d or ctx cancellation, reporting whether it returned
// because the timer fired (true) rather than cancellation (false).
func (n *Notifier) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// streamLoop runs the STREAMING tick loop until the stream fails or ctx is
// canceled. Returns false if the caller should stop entirely (ctx done),
// true if it should fall back to BACKOFF and reconnect.
func (n *Notifier) streamLoop(ctx context.Context, stream StreamSink) bool {
	go n.recvControlMessages(ctx, stream)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		start := time.Now()
		if !n.tick(stream) {
			return true
		}
		n.metrics.ObserveTickDuration(time.Since(start))
	}
}

// tick runs one scrape-update-diff-send cycle (spec §4.5 "Scrape/send
// loop"). Returns false if the stream write failed and the caller should
// reconnect.
func (n *Notifier) tick(stream StreamSink) bool {
	conns, listeners, err := n.scraper.Scrape()
	if err != nil {
		log.Println("notifier: scrape failed, skipping tick:", err)
		n.metrics.IncScrapeError()
		return true
	}

	now := time.Now().UnixMicro()
	n.tracker.Update(conns, listeners, now)

	newConns := n.tracker.FetchConnState(now, true, true)
	newEndpoints := n.tracker.FetchEndpointState(now, true, true)

	connDelta := tracker.ComputeDelta(newConns, n.oldConns)
	endpointDelta := tracker.ComputeEndpointDelta(newEndpoints, n.oldEndpoints)

	if len(connDelta) > 0 || len(endpointDelta) > 0 {
		msg := buildMessage(connDelta, endpointDelta, now)
		if err := stream.Send(msg); err != nil {
			log.Println("notifier: stream write failed, reconnecting:", err)
			return false
		}
		n.metrics.IncDeltaSent(len(connDelta), len(endpointDelta))
	}

	n.oldConns = newConns
	n.oldEndpoints = newEndpoints
	return true
}

// recvControlMessages drains inbound control messages for the life of the
// stream, applying each to the tracker (spec §4.5 "Control messages").
func (n *Notifier) recvControlMessages(ctx context.Context, stream StreamSink) {
	for {
		if ctx.Err() != nil {
			return
		}
		cm, err := stream.Recv()
		if err != nil {
			return
		}
		n.applyControlMessage(cm)
	}
}

func (n *Notifier) applyControlMessage(cm *wire.ControlMessage) {
	if cm.Networks != nil {
		tree, err := cidrtree.BuildFromRecords(cm.Networks.V4, cm.Networks.V6)
		if err != nil {
			log.Println("notifier: malformed known-networks update:", err)
			return
		}
		n.tracker.UpdateKnownNetworks(tree)
	}
	if cm.PublicIPs != nil {
		ips := make([]netaddr.Address, 0, len(cm.PublicIPs.List))
		for _, a := range cm.PublicIPs.List {
			ips = append(ips, addressFromWire(a))
		}
		n.tracker.UpdateKnownPublicIPs(ips)
	}
}
