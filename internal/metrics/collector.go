// Package metrics exposes Prometheus counters and gauges for the RIP
// control loop: table size by reachability state, packet volume by
// direction and kind, triggered-update frequency, and forwarding/drop
// outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "ripd"
	subsystem = "rip"
)

// Route reachability states for the rip_routes gauge.
const (
	StateLearned  = "learned"
	StateDirect   = "direct"
	StatePoisoned = "poisoned"
)

// Packet directions for the rip_packets_total counter.
const (
	DirInbound  = "in"
	DirOutbound = "out"
)

// Packet kinds for the rip_packets_total counter. KindOther covers inbound
// traffic that is not a parsed RIP request or response: transit frames
// being forwarded, and frames dropped before or during RIP parsing.
const (
	KindRequest  = "request"
	KindResponse = "response"
	KindOther    = "other"
)

// Drop reasons for the rip_dropped_total counter, matching the reason
// strings internal/router passes to Collector.IncDropped.
const (
	ReasonBadChecksum = "bad_ip_checksum"
	ReasonMalformed   = "malformed_rip"
	ReasonNoRoute     = "no_route"
	ReasonARPMiss     = "arp_miss"
	ReasonTTLExpired  = "ttl_expired"
)

// Collector holds all RIP Prometheus metrics, one GaugeVec/CounterVec
// field per metric.
type Collector struct {
	// Routes tracks the number of routing table entries, labeled by
	// reachability state (direct, learned, poisoned).
	Routes *prometheus.GaugeVec

	// Packets counts RIP datagrams, labeled by direction (in/out) and
	// kind (request/response/other). Outbound, it counts one per REQUEST
	// answered; periodic and triggered multicasts are not counted.
	Packets *prometheus.CounterVec

	// TriggeredUpdates counts every triggered-update cycle the control
	// loop has fired (one per drained-and-sent batch of changed routes).
	TriggeredUpdates prometheus.Counter

	// Forwarded counts IPv4 packets successfully forwarded toward a
	// best-match route.
	Forwarded prometheus.Counter

	// Dropped counts packets dropped during receive processing, labeled
	// by reason.
	Dropped *prometheus.CounterVec
}

// NewCollector creates a Collector with all RIP metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Routes,
		c.Packets,
		c.TriggeredUpdates,
		c.Forwarded,
		c.Dropped,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		Routes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "routes",
			Help:      "Number of routing table entries by reachability state.",
		}, []string{"state"}),

		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_total",
			Help:      "Total RIP datagrams by direction and kind.",
		}, []string{"dir", "kind"}),

		TriggeredUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "triggered_updates_total",
			Help:      "Total triggered-update cycles fired by the control loop.",
		}),

		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "forwarded_total",
			Help:      "Total IPv4 packets forwarded toward a best-match route.",
		}),

		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_total",
			Help:      "Total packets dropped during receive processing, by reason.",
		}, []string{"reason"}),
	}
}

// IncPacketsReceived implements router.Metrics. kind is one of KindRequest,
// KindResponse, or KindOther.
func (c *Collector) IncPacketsReceived(kind string) {
	c.Packets.WithLabelValues(DirInbound, kind).Inc()
}

// IncPacketsSent implements router.Metrics.
func (c *Collector) IncPacketsSent() {
	c.Packets.WithLabelValues(DirOutbound, KindResponse).Inc()
}

// IncDropped implements router.Metrics.
func (c *Collector) IncDropped(reason string) {
	c.Dropped.WithLabelValues(reason).Inc()
}

// IncForwarded implements router.Metrics.
func (c *Collector) IncForwarded() {
	c.Forwarded.Inc()
}

// IncTriggeredUpdate implements router.Metrics.
func (c *Collector) IncTriggeredUpdate() {
	c.TriggeredUpdates.Inc()
}

// SetRouteCountByState implements router.Metrics. It reports route counts
// broken out by reachability state, distinguishing direct/learned/poisoned
// routes.
func (c *Collector) SetRouteCountByState(direct, learned, poisoned int) {
	c.Routes.WithLabelValues(StateDirect).Set(float64(direct))
	c.Routes.WithLabelValues(StateLearned).Set(float64(learned))
	c.Routes.WithLabelValues(StatePoisoned).Set(float64(poisoned))
}
