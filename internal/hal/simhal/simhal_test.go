package simhal_test

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/ripnet/ripd/internal/hal/simhal"
)

func addr(a, b, c, d byte) uint32 {
	return binary.BigEndian.Uint32([]byte{a, b, c, d})
}

func TestSendIPDeliversToOtherAttachedNode(t *testing.T) {
	bus := simhal.NewBus()

	node1 := simhal.New()
	node1.AttachInterface(0, bus, [6]byte{1})
	if err := node1.Init(context.Background(), false, []uint32{addr(10, 0, 0, 1)}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	node2 := simhal.New()
	node2.AttachInterface(0, bus, [6]byte{2})
	if err := node2.Init(context.Background(), false, []uint32{addr(10, 0, 0, 2)}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	payload := []byte("hello")
	if err := node1.SendIP(0, payload, [6]byte{2}); err != nil {
		t.Fatalf("SendIP: %v", err)
	}

	buf := make([]byte, 64)
	n, srcMAC, _, ifIndex, err := node2.ReceiveIP(context.Background(), 1, buf, time.Second)
	if err != nil {
		t.Fatalf("ReceiveIP: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got payload %q, want %q", buf[:n], "hello")
	}
	if srcMAC != [6]byte{1} {
		t.Fatalf("got srcMAC %v, want node1's MAC", srcMAC)
	}
	if ifIndex != 0 {
		t.Fatalf("got ifIndex %d, want 0", ifIndex)
	}
}

func TestReceiveIPTimesOutWithoutDelivery(t *testing.T) {
	bus := simhal.NewBus()
	node := simhal.New()
	node.AttachInterface(0, bus, [6]byte{1})
	_ = node.Init(context.Background(), false, []uint32{addr(10, 0, 0, 1)})

	buf := make([]byte, 64)
	n, _, _, _, err := node.ReceiveIP(context.Background(), 1, buf, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("got n=%d, want 0 on timeout", n)
	}
}

func TestReceiveIPReturnsEOFAfterClose(t *testing.T) {
	bus := simhal.NewBus()
	node := simhal.New()
	node.AttachInterface(0, bus, [6]byte{1})
	_ = node.Init(context.Background(), false, []uint32{addr(10, 0, 0, 1)})
	node.Close()

	buf := make([]byte, 64)
	_, _, _, _, err := node.ReceiveIP(context.Background(), 1, buf, time.Second)
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestArpGetMACResolvesSeededNeighbor(t *testing.T) {
	node := simhal.New()
	node.AddNeighbor(0, addr(10, 0, 0, 2), [6]byte{0xaa})

	mac, ok := node.ArpGetMAC(0, addr(10, 0, 0, 2))
	if !ok || mac != ([6]byte{0xaa}) {
		t.Fatalf("got mac=%v ok=%v", mac, ok)
	}

	if _, ok := node.ArpGetMAC(0, addr(10, 0, 0, 3)); ok {
		t.Fatalf("expected unseeded neighbor to be unresolved")
	}
}
