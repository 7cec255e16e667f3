package ipv4util_test

import (
	"testing"

	"github.com/ripnet/ripd/internal/ipv4util"
)

// sampleHeader builds a 20-byte IPv4 header: version 4, IHL 5, total length
// 84, TTL 64, protocol UDP (17), src 192.168.3.2, dst 192.168.3.1, with the
// checksum field computed and filled in.
func sampleHeader(tb testing.TB) []byte {
	tb.Helper()
	h := []byte{
		0x45, 0x00, 0x00, 0x54,
		0x00, 0x00, 0x40, 0x00,
		0x40, 0x11, 0x00, 0x00,
		192, 168, 3, 2,
		192, 168, 3, 1,
	}
	csum := ipv4util.HeaderChecksum(h)
	h[10], h[11] = byte(csum>>8), byte(csum)
	return h
}

func TestHeaderChecksumRoundTrip(t *testing.T) {
	h := sampleHeader(t)
	if !ipv4util.ValidateChecksum(h) {
		t.Fatalf("expected checksum to validate, header=% x", h)
	}
}

func TestHeaderChecksumDetectsCorruption(t *testing.T) {
	h := sampleHeader(t)
	h[15] ^= 0xff // flip a byte of the source address
	if ipv4util.ValidateChecksum(h) {
		t.Fatalf("expected checksum mismatch after corruption")
	}
}

func TestValidateChecksumRejectsShortPacket(t *testing.T) {
	if ipv4util.ValidateChecksum(make([]byte, 10)) {
		t.Fatalf("expected short packet to fail validation")
	}
}

func TestForwardRewriteDecrementsTTLAndFixesChecksum(t *testing.T) {
	h := sampleHeader(t)
	oldTTL := h[8]

	newTTL := ipv4util.ForwardRewrite(h)

	if newTTL != oldTTL-1 {
		t.Fatalf("got TTL %d, want %d", newTTL, oldTTL-1)
	}
	if !ipv4util.ValidateChecksum(h) {
		t.Fatalf("checksum invalid after forward rewrite, header=% x", h)
	}
}

func TestForwardRewriteMatchesFullRecompute(t *testing.T) {
	h1 := sampleHeader(t)
	h2 := append([]byte(nil), h1...)

	ipv4util.ForwardRewrite(h1)

	h2[8]--
	h2[10], h2[11] = 0, 0
	full := ipv4util.HeaderChecksum(h2)
	h2[10], h2[11] = byte(full>>8), byte(full)

	if string(h1) != string(h2) {
		t.Fatalf("incremental update diverged from full recompute: %x vs %x", h1, h2)
	}
}

func TestForwardRewriteToZeroTTLIsCallersResponsibility(t *testing.T) {
	h := sampleHeader(t)
	h[8] = 1
	csum := ipv4util.HeaderChecksum(h)
	h[10], h[11] = byte(csum>>8), byte(csum)

	got := ipv4util.ForwardRewrite(h)

	if got != 0 {
		t.Fatalf("got TTL %d, want 0", got)
	}
	if !ipv4util.ValidateChecksum(h) {
		t.Fatalf("checksum must still validate even though TTL hit zero")
	}
}
