// Package advert builds and transmits RIPv2 RESPONSE/REQUEST datagrams: the
// response builder that answers a REQUEST or reports a batch of routes, the
// multicast fan-out used for periodic and triggered updates, and the
// whole-table REQUEST used for active discovery.
//
// Built around a PacketSender-based API so the builder never depends on a
// concrete transport.
package advert

import (
	"encoding/binary"

	"github.com/ripnet/ripd/internal/ipv4util"
	"github.com/ripnet/ripd/internal/ripwire"
	"github.com/ripnet/ripd/internal/rtable"
)

// MulticastAddr is the RIPv2 multicast destination (RFC 2453 Section 1).
const MulticastAddr uint32 = 0xe0000009 // 224.0.0.9

const (
	udpHeaderLen = 8
	ipHeaderLen  = 20
	ripPort      = 520
	multicastTTL = 1
)

// PacketSender is the transport seam advert builds against: ARP resolution
// plus a raw IPv4 send, matching the subset of hal.HAL that response
// construction needs. Kept as its own interface (rather than importing
// hal.HAL directly) so advert can be unit tested against a fake with no
// dependency on the HAL package's full surface.
type PacketSender interface {
	ArpGetMAC(ifIndex int, ipv4 uint32) (mac [6]byte, ok bool)
	SendIP(ifIndex int, buf []byte, dstMAC [6]byte) error
}

// BuildResponse sends a RIP RESPONSE from local address localAddr out
// interface ifIndex toward dstIPv4, ARP-resolving the link-layer
// destination first and dropping silently if it cannot be resolved.
// entries are chunked into groups of at most ripwire.MaxEntries, one
// outbound datagram per group.
func BuildResponse(sender PacketSender, ifIndex int, localAddr, dstIPv4 uint32, entries []rtable.Entry) {
	mac, ok := sender.ArpGetMAC(ifIndex, dstIPv4)
	if !ok {
		return
	}

	ttl := uint8(64)
	if dstIPv4 == MulticastAddr {
		ttl = multicastTTL
	}

	chunks := chunkEntries(entries)
	for _, chunk := range chunks {
		ripEntries := make([]ripwire.Entry, len(chunk))
		for i, e := range chunk {
			ripEntries[i] = ripwire.Entry{
				Addr:    e.Addr,
				Mask:    ripwire.MaskFromLen(e.Len),
				NextHop: e.NextHop,
				Metric:  uint32(e.Metric),
			}
		}

		ripPayload := ripwire.Assemble(&ripwire.Packet{Command: ripwire.Response, Entries: ripEntries})
		frame := buildFrame(localAddr, dstIPv4, ttl, ripPayload)
		_ = sender.SendIP(ifIndex, frame, mac)
	}
}

// chunkEntries splits entries into groups of at most ripwire.MaxEntries. An
// empty input yields a single empty group, so callers with nothing to
// report still emit one (possibly empty) RESPONSE datagram.
func chunkEntries(entries []rtable.Entry) [][]rtable.Entry {
	if len(entries) == 0 {
		return [][]rtable.Entry{nil}
	}
	var chunks [][]rtable.Entry
	for start := 0; start < len(entries); start += ripwire.MaxEntries {
		end := start + ripwire.MaxEntries
		if end > len(entries) {
			end = len(entries)
		}
		chunks = append(chunks, entries[start:end])
	}
	return chunks
}

// buildFrame assembles a complete IPv4+UDP+RIP datagram carrying ripPayload,
// with source srcIPv4, destination dstIPv4, the given TTL, and a correct
// IPv4 header checksum. UDP checksum is left at zero, which RFC 768 permits
// for IPv4.
func buildFrame(srcIPv4, dstIPv4 uint32, ttl uint8, ripPayload []byte) []byte {
	udpLen := udpHeaderLen + len(ripPayload)
	totalLen := ipHeaderLen + udpLen

	frame := make([]byte, totalLen)
	frame[0] = 0x45 // version 4, IHL 5
	frame[1] = 0    // TOS
	binary.BigEndian.PutUint16(frame[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(frame[4:6], 0) // identification
	binary.BigEndian.PutUint16(frame[6:8], 0) // flags/fragment offset
	frame[8] = ttl
	frame[9] = 17 // protocol UDP
	binary.BigEndian.PutUint32(frame[12:16], srcIPv4)
	binary.BigEndian.PutUint32(frame[16:20], dstIPv4)

	csum := ipv4util.HeaderChecksum(frame[:ipHeaderLen])
	binary.BigEndian.PutUint16(frame[10:12], csum)

	udp := frame[ipHeaderLen:]
	binary.BigEndian.PutUint16(udp[0:2], ripPort)
	binary.BigEndian.PutUint16(udp[2:4], ripPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	binary.BigEndian.PutUint16(udp[6:8], 0) // checksum, RFC 768 permits 0
	copy(udp[udpHeaderLen:], ripPayload)

	return frame
}

// Multicast sends entries to the RIP multicast group on every local
// interface. If splitHorizon is true, entries learned via interface i are
// omitted from the datagram sent out interface i (split horizon without
// poisoned reverse).
func Multicast(sender PacketSender, localAddrs []uint32, entries []rtable.Entry, splitHorizon bool) {
	for i, localAddr := range localAddrs {
		out := entries
		if splitHorizon {
			out = nil
			for _, e := range entries {
				if e.IfIndex != i {
					out = append(out, e)
				}
			}
		}
		BuildResponse(sender, i, localAddr, MulticastAddr, out)
	}
}

// MulticastRequest sends a single RIP REQUEST entry carrying family=0 and
// metric=16 (the RFC 2453 Section 3.9.1 whole-table request) to the
// multicast group from every local interface, as a cheap active-discovery
// gesture when a forwarding lookup misses.
func MulticastRequest(sender PacketSender, localAddrs []uint32) {
	req := &ripwire.Packet{
		Command: ripwire.Request,
		Entries: []ripwire.Entry{{Metric: ripwire.MaxMetric}},
	}
	ripPayload := ripwire.Assemble(req)

	for i, localAddr := range localAddrs {
		mac, ok := sender.ArpGetMAC(i, MulticastAddr)
		if !ok {
			continue
		}
		frame := buildFrame(localAddr, MulticastAddr, multicastTTL, ripPayload)
		_ = sender.SendIP(i, frame, mac)
	}
}
