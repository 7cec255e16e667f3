// Package router implements the single-threaded RIPv2 control loop: timer
// handling, frame receipt and classification, local RIP request/response
// handling, route learning, and forwarding.
//
// One iteration does: timer check, HAL receive with a bounded timeout, IP
// validation, destination classification, local delivery, forwarding, with
// a drop/accept log line at each decision point.
package router

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ripnet/ripd/internal/advert"
	"github.com/ripnet/ripd/internal/hal"
	"github.com/ripnet/ripd/internal/ipv4util"
	"github.com/ripnet/ripd/internal/ripwire"
	"github.com/ripnet/ripd/internal/rtable"
)

// recvTimeout bounds every HAL receive call; a packet that arrives during a
// long send never preempts it, since timers are only re-checked at the top
// of the next loop iteration.
const recvTimeout = time.Second

// minTriggeredJitter and jitterSpread bound the randomized delay before a
// pending triggered update is sent (RFC 2453 Section 3.10.1): the delay is
// minTriggeredJitter plus a random duration in [0, jitterSpread).
const (
	minTriggeredJitter = time.Second
	jitterSpread       = 4 * time.Second
)

// directRouteMetric is the metric assigned to the directly-connected /24
// seeded per local interface at startup: the smallest valid RIP metric and
// the conventional value for a directly attached network.
const directRouteMetric = 1

// Frame kinds passed to Metrics.IncPacketsReceived.
const (
	frameKindRequest  = "request"
	frameKindResponse = "response"
	frameKindOther    = "other"
)

// Metrics is the read-only counters sink the control loop reports into. A
// nil-safe no-op implementation is used when no metrics.Collector is wired,
// so callers never need to guard against a nil Metrics field.
type Metrics interface {
	IncPacketsReceived(kind string)
	IncPacketsSent()
	IncDropped(reason string)
	IncForwarded()
	IncTriggeredUpdate()
	SetRouteCountByState(direct, learned, poisoned int)
}

type noopMetrics struct{}

func (noopMetrics) IncPacketsReceived(string)                          {}
func (noopMetrics) IncPacketsSent()                                    {}
func (noopMetrics) IncDropped(string)                                  {}
func (noopMetrics) IncForwarded()                                      {}
func (noopMetrics) IncTriggeredUpdate()                                {}
func (noopMetrics) SetRouteCountByState(direct, learned, poisoned int) {}

// Config configures one Router instance.
type Config struct {
	// LocalAddrs holds one IPv4 address per local interface, in network
	// byte order as produced by binary.BigEndian.Uint32, index-aligned
	// with HAL interface indices.
	LocalAddrs []uint32

	// PeriodicInterval is how often the full table is multicast
	// unsolicited. Defaults to 5s rather than RFC 2453's 30s
	// recommendation.
	PeriodicInterval time.Duration

	// Debug is passed through to hal.HAL.Init.
	Debug bool

	Logger  *slog.Logger
	Metrics Metrics
}

// Snapshot is a read-only copy of router state for ambient observers
// (the metrics collector, the debug HTTP server) that never mutate the
// table or timers directly.
type Snapshot struct {
	Routes []rtable.Entry
}

// Router owns the routing table and all timer state and runs the
// single-threaded control loop in Run. No method on Router besides
// Snapshot is safe to call concurrently with Run.
type Router struct {
	hal    hal.HAL
	cfg    Config
	logger *slog.Logger
	metric Metrics
	rng    *rand.Rand

	table *rtable.Table

	lastPeriodic      time.Duration
	lastTriggered     time.Duration
	triggeredDeadline time.Duration
	triggeredPending  bool

	snapMu sync.RWMutex
	snap   Snapshot
}

// New constructs a Router against the given HAL and configuration. The
// table is empty until Run seeds it with the directly-connected routes.
func New(h hal.HAL, cfg Config) *Router {
	if cfg.PeriodicInterval <= 0 {
		cfg.PeriodicInterval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	return &Router{
		hal:    h,
		cfg:    cfg,
		logger: logger,
		metric: m,
		table:  rtable.New(),
	}
}

// Snapshot returns a read-only copy of the current routing table, safe to
// call from any goroutine. It takes a lock distinct from the loop's
// internal unlocked state, so read-only observers never contend with the
// hot path.
func (r *Router) Snapshot() Snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	routes := make([]rtable.Entry, len(r.snap.Routes))
	copy(routes, r.snap.Routes)
	return Snapshot{Routes: routes}
}

func (r *Router) publishSnapshot() {
	routes := r.table.All()
	r.snapMu.Lock()
	r.snap = Snapshot{Routes: routes}
	r.snapMu.Unlock()

	var direct, learned, poisoned int
	for _, e := range routes {
		switch {
		case e.Metric >= uint8(ripwire.MaxMetric):
			poisoned++
		case e.NextHop == 0:
			direct++
		default:
			learned++
		}
	}
	r.metric.SetRouteCountByState(direct, learned, poisoned)
}

// Run executes the control loop until the HAL reports clean shutdown (io.EOF
// from ReceiveIP), the context is canceled, or the HAL reports a fatal
// error. It is single-threaded: Run owns the table and every timer field
// directly, with no locks on the hot path.
func (r *Router) Run(ctx context.Context) error {
	if err := r.hal.Init(ctx, r.cfg.Debug, r.cfg.LocalAddrs); err != nil {
		return err
	}
	r.seedDirectRoutes()
	r.publishSnapshot()
	r.rng = rand.New(rand.NewPCG(uint64(r.hal.Ticks()), 0x5251))

	var ifMask uint32
	for i := range r.cfg.LocalAddrs {
		ifMask |= 1 << uint(i)
	}

	recvBuf := make([]byte, 65536)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.checkTimers(r.hal.Ticks())

		n, _, _, ifIndex, err := r.hal.ReceiveIP(ctx, ifMask, recvBuf, recvTimeout)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		case n == 0:
			r.publishSnapshot()
			continue
		}

		r.handleFrame(recvBuf[:n], ifIndex)
		r.publishSnapshot()
	}
}

// seedDirectRoutes inserts one directly-connected /24 per local interface.
func (r *Router) seedDirectRoutes() {
	for i, a := range r.cfg.LocalAddrs {
		r.table.Insert(rtable.Entry{
			Addr:    a & 0xffffff00,
			Len:     24,
			IfIndex: i,
			NextHop: 0,
			Metric:  directRouteMetric,
		})
	}
}

// checkTimers emits the periodic full-table multicast if it is due, else
// emits a pending triggered update once its jittered deadline has elapsed.
func (r *Router) checkTimers(now time.Duration) {
	if now-r.lastPeriodic >= r.cfg.PeriodicInterval {
		advert.Multicast(r.hal, r.cfg.LocalAddrs, r.table.All(), true)
		r.lastPeriodic = now
		r.triggeredPending = false
		r.triggeredDeadline = 0
		return
	}

	if r.triggeredPending && now-r.lastTriggered >= r.triggeredDeadline {
		changed := r.table.DrainChanged()
		advert.Multicast(r.hal, r.cfg.LocalAddrs, changed, true)
		for _, e := range changed {
			if e.Metric == uint8(ripwire.MaxMetric) {
				r.table.Remove(e.Addr, e.Len)
			}
		}
		r.publishSnapshot()
		r.lastTriggered = now
		r.triggeredDeadline = minTriggeredJitter + time.Duration(r.rng.Int64N(int64(jitterSpread)))
		r.triggeredPending = false
		r.metric.IncTriggeredUpdate()
	}
}

// handleFrame validates, classifies, and dispatches one received IPv4 frame:
// local delivery for frames addressed to this node or the RIP multicast
// group, forwarding otherwise.
func (r *Router) handleFrame(frame []byte, ifIndex int) {
	if !ipv4util.ValidateChecksum(frame) {
		r.metric.IncPacketsReceived(frameKindOther)
		r.drop("bad_ip_checksum")
		return
	}

	dst := binary.BigEndian.Uint32(frame[16:20])
	src := binary.BigEndian.Uint32(frame[12:16])

	if r.isLocal(dst) {
		r.deliverLocal(frame, ifIndex, src)
		return
	}
	r.metric.IncPacketsReceived(frameKindOther)
	r.forward(frame, dst)
}

func (r *Router) isLocal(dst uint32) bool {
	if dst == advert.MulticastAddr {
		return true
	}
	for _, a := range r.cfg.LocalAddrs {
		if a == dst {
			return true
		}
	}
	return false
}

// deliverLocal handles REQUEST/RESPONSE processing for a frame addressed to
// this node or to the RIP multicast group.
func (r *Router) deliverLocal(frame []byte, ifIndex int, src uint32) {
	p, err := ripwire.Disassemble(frame)
	if err != nil {
		r.metric.IncPacketsReceived(frameKindOther)
		r.drop("malformed_rip")
		return
	}

	switch p.Command {
	case ripwire.Request:
		r.metric.IncPacketsReceived(frameKindRequest)
		localAddr := r.localAddr(ifIndex)
		advert.BuildResponse(r.hal, ifIndex, localAddr, src, r.table.All())
		r.metric.IncPacketsSent()

	case ripwire.Response:
		r.metric.IncPacketsReceived(frameKindResponse)
		r.importResponse(p, ifIndex, src)
	}
}

// importResponse applies the RESPONSE-import rule to every entry in p: an
// absent/present branch decides whether to update the table and arm a
// triggered update.
func (r *Router) importResponse(p *ripwire.Packet, ifIndex int, src uint32) {
	for _, re := range p.Entries {
		newMetric := re.Metric + 1
		if newMetric > uint32(ripwire.MaxMetric) {
			newMetric = uint32(ripwire.MaxMetric)
		}

		length := rtable.MaskLen(re.Mask)
		existing, found := r.table.ExactMatch(re.Addr, length)

		switch {
		case !found && newMetric < uint32(ripwire.MaxMetric):
			r.table.Insert(rtable.Entry{
				Addr:    re.Addr,
				Len:     length,
				IfIndex: ifIndex,
				NextHop: src,
				Metric:  uint8(newMetric),
			})
			r.triggeredPending = true

		case !found:
			// newMetric == MaxMetric and no existing route: not worth
			// adding an already-unreachable entry.

		case found && ((existing.NextHop == src && uint32(existing.Metric) != newMetric) || uint32(existing.Metric) > newMetric):
			r.table.Insert(rtable.Entry{
				Addr:    re.Addr,
				Len:     length,
				IfIndex: ifIndex,
				NextHop: src,
				Metric:  uint8(newMetric),
			})
			r.triggeredPending = true

		default:
			// Offered route is neither from the current next hop with a
			// changed metric nor strictly better: leave the table as is.
		}
	}
}

// forward looks up the best matching route for dst and, if found, rewrites
// and sends the frame out that route's interface.
func (r *Router) forward(frame []byte, dst uint32) {
	entry, found := r.table.BestMatch(dst)
	if !found {
		advert.MulticastRequest(r.hal, r.cfg.LocalAddrs)
		r.drop("no_route")
		return
	}

	nextHop := entry.NextHop
	if nextHop == 0 {
		nextHop = dst
	}

	mac, ok := r.hal.ArpGetMAC(entry.IfIndex, nextHop)
	if !ok {
		r.drop("arp_miss")
		return
	}

	out := append([]byte(nil), frame...)
	newTTL := ipv4util.ForwardRewrite(out)
	if newTTL == 0 {
		r.drop("ttl_expired")
		return
	}

	if err := r.hal.SendIP(entry.IfIndex, out, mac); err != nil {
		r.logger.Debug("forward send failed", slog.String("error", err.Error()))
		return
	}
	r.metric.IncForwarded()
}

func (r *Router) localAddr(ifIndex int) uint32 {
	if ifIndex < 0 || ifIndex >= len(r.cfg.LocalAddrs) {
		return 0
	}
	return r.cfg.LocalAddrs[ifIndex]
}

func (r *Router) drop(reason string) {
	r.metric.IncDropped(reason)
	r.logger.Debug("dropping packet", slog.String("reason", reason))
}
