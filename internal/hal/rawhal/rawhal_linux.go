//go:build linux

// Package rawhal implements hal.HAL against real Linux network interfaces
// using AF_PACKET raw sockets, one per attached interface, so the router
// sees and writes complete Ethernet frames. It is the production counterpart
// to simhal's in-memory double; the router's control loop is identical
// against either.
//
// Each attached interface is a small struct holding its socket and link
// details; the HAL itself guards them with a mutex and a closed flag, with
// one exported constructor and Init/Close lifecycle methods.
package rawhal

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const ethHeaderLen = 14
const ethTypeIPv4 = 0x0800

// iface is one attached network interface: its raw socket file descriptor
// and kernel interface index.
type iface struct {
	name    string
	ifIndex int
	fd      int
	mac     [6]byte
}

// HAL implements hal.HAL against real Linux interfaces. Index i in every
// per-interface method corresponds to ifaces[i] in the slice passed to New.
type HAL struct {
	mu     sync.Mutex
	ifaces []*iface
	start  time.Time
	closed bool
}

// New opens one AF_PACKET SOCK_RAW socket per name in ifNames, bound to that
// interface and filtered to EtherType IPv4, and returns a HAL ready for
// Init. The returned HAL's interface indices are index-aligned with ifNames.
func New(ifNames []string) (*HAL, error) {
	h := &HAL{}
	for _, name := range ifNames {
		link, err := net.InterfaceByName(name)
		if err != nil {
			h.closeAll()
			return nil, fmt.Errorf("rawhal: lookup interface %s: %w", name, err)
		}

		fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(ethTypeIPv4)))
		if err != nil {
			h.closeAll()
			return nil, fmt.Errorf("rawhal: open raw socket on %s: %w", name, err)
		}

		addr := &unix.SockaddrLinklayer{
			Protocol: htons(ethTypeIPv4),
			Ifindex:  link.Index,
		}
		if err := unix.Bind(fd, addr); err != nil {
			unix.Close(fd)
			h.closeAll()
			return nil, fmt.Errorf("rawhal: bind raw socket on %s: %w", name, err)
		}

		var mac [6]byte
		copy(mac[:], link.HardwareAddr)

		h.ifaces = append(h.ifaces, &iface{name: name, ifIndex: link.Index, fd: fd, mac: mac})
	}
	return h, nil
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.NativeEndian.Uint16(b[:])
}

func (h *HAL) closeAll() {
	for _, f := range h.ifaces {
		unix.Close(f.fd)
	}
}

// Init starts the clock; the local addresses are not used, and the raw
// sockets themselves are already open from New.
func (h *HAL) Init(_ context.Context, _ bool, _ []uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start = time.Now()
	return nil
}

// Ticks returns elapsed wall-clock time since Init.
func (h *HAL) Ticks() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.start)
}

// ArpGetMAC reads the kernel's own neighbor table (/proc/net/arp) rather
// than implementing a second ARP client alongside the kernel's: the kernel
// network stack on the same host already resolves and maintains ARP
// entries for addresses ripd routes toward, so rawhal defers to it instead
// of duplicating RFC 826.
func (h *HAL) ArpGetMAC(ifIndex int, ipv4 uint32) (mac [6]byte, ok bool) {
	h.mu.Lock()
	if ifIndex < 0 || ifIndex >= len(h.ifaces) {
		h.mu.Unlock()
		return mac, false
	}
	ifaceName := h.ifaces[ifIndex].name
	h.mu.Unlock()

	want := net.IPv4(byte(ipv4>>24), byte(ipv4>>16), byte(ipv4>>8), byte(ipv4)).String()

	f, err := os.Open("/proc/net/arp")
	if err != nil {
		return mac, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		ip, hwAddr, device := fields[0], fields[3], fields[5]
		if ip != want || device != ifaceName {
			continue
		}
		hw, err := net.ParseMAC(hwAddr)
		if err != nil || len(hw) != 6 {
			continue
		}
		copy(mac[:], hw)
		return mac, true
	}
	return mac, false
}

// ReceiveIP polls every attached interface's raw socket for up to timeout
// and returns the first Ethernet frame received, stripped to its IPv4
// payload.
func (h *HAL) ReceiveIP(ctx context.Context, ifMask uint32, buf []byte, timeout time.Duration) (n int, srcMAC, dstMAC [6]byte, ifIndex int, err error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, srcMAC, dstMAC, 0, io.EOF
	}
	var pollFds []unix.PollFd
	var order []int
	for i, f := range h.ifaces {
		if ifMask&(1<<uint(i)) == 0 {
			continue
		}
		pollFds = append(pollFds, unix.PollFd{Fd: int32(f.fd), Events: unix.POLLIN})
		order = append(order, i)
	}
	h.mu.Unlock()

	if len(pollFds) == 0 {
		return 0, srcMAC, dstMAC, 0, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, srcMAC, dstMAC, 0, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, srcMAC, dstMAC, 0, err
		}

		nReady, perr := unix.Poll(pollFds, int(remaining.Milliseconds())+1)
		if perr != nil {
			if perr == unix.EINTR {
				continue
			}
			return 0, srcMAC, dstMAC, 0, perr
		}
		if nReady == 0 {
			return 0, srcMAC, dstMAC, 0, nil
		}

		for i, pfd := range pollFds {
			if pfd.Revents&unix.POLLIN == 0 {
				continue
			}
			frame := make([]byte, 65536)
			rn, _, rerr := unix.Recvfrom(int(pfd.Fd), frame, 0)
			if rerr != nil || rn < ethHeaderLen {
				continue
			}
			copy(dstMAC[:], frame[0:6])
			copy(srcMAC[:], frame[6:12])
			n = copy(buf, frame[ethHeaderLen:rn])
			return n, srcMAC, dstMAC, order[i], nil
		}
	}
}

// SendIP prepends an Ethernet header (source MAC of ifIndex's interface,
// destination dstMAC, EtherType IPv4) to buf and writes the resulting frame
// to that interface's raw socket.
func (h *HAL) SendIP(ifIndex int, buf []byte, dstMAC [6]byte) error {
	h.mu.Lock()
	if h.closed || ifIndex < 0 || ifIndex >= len(h.ifaces) {
		h.mu.Unlock()
		return fmt.Errorf("rawhal: invalid or closed interface %d", ifIndex)
	}
	f := h.ifaces[ifIndex]
	h.mu.Unlock()

	frame := make([]byte, ethHeaderLen+len(buf))
	copy(frame[0:6], dstMAC[:])
	copy(frame[6:12], f.mac[:])
	binary.BigEndian.PutUint16(frame[12:14], ethTypeIPv4)
	copy(frame[ethHeaderLen:], buf)

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(ethTypeIPv4),
		Ifindex:  f.ifIndex,
		Halen:    6,
	}
	copy(addr.Addr[:6], dstMAC[:])

	return unix.Sendto(f.fd, frame, 0, addr)
}

// Close releases every raw socket.
func (h *HAL) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.closeAll()
	return nil
}
