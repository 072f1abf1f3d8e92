package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	"example.com/astgate/internal/common"
)

// maxDatagram is sized for jumbo frames; ASTERIX blocks on the wire are far
// smaller but radar feeds occasionally batch several blocks per datagram.
const maxDatagram = 65535

// UDPSource listens on a UDP socket, optionally joined to a multicast group,
// and delivers each datagram as one Capture stamped with the receive time.
type UDPSource struct {
	conn *net.UDPConn
}

// ListenUDP opens a UDP listener on addr ("host:port"). When group is
// non-empty it must be a multicast group address to join; ifaceName selects
// the interface for the join and may be empty to let the kernel choose.
func ListenUDP(addr, group, ifaceName string) (*UDPSource, error) {
	if group != "" {
		gaddr, err := net.ResolveUDPAddr("udp4", group)
		if err != nil {
			return nil, fmt.Errorf("resolve multicast group %s: %w", group, err)
		}
		var iface *net.Interface
		if ifaceName != "" {
			iface, err = net.InterfaceByName(ifaceName)
			if err != nil {
				return nil, fmt.Errorf("interface %s: %w", ifaceName, err)
			}
		}
		conn, err := net.ListenMulticastUDP("udp4", iface, gaddr)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", group, err)
		}
		if err := conn.SetReadBuffer(4 << 20); err != nil {
			common.Logf("udp: set read buffer: %v", err)
		}
		return &UDPSource{conn: conn}, nil
	}

	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if err := conn.SetReadBuffer(4 << 20); err != nil {
		common.Logf("udp: set read buffer: %v", err)
	}
	return &UDPSource{conn: conn}, nil
}

// LocalAddr reports the bound socket address.
func (s *UDPSource) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Run reads datagrams until ctx is cancelled, sending each as a Capture on
// out. The channel is closed when the loop exits.
func (s *UDPSource) Run(ctx context.Context, out chan<- Capture) error {
	defer close(out)

	go func() {
		<-ctx.Done()
		s.conn.SetReadDeadline(time.Now())
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("udp read: %w", err)
		}
		if n == 0 {
			continue
		}
		capture := Capture{
			Data:      append([]byte(nil), buf[:n]...),
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		}
		select {
		case out <- capture:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the socket.
func (s *UDPSource) Close() error { return s.conn.Close() }
