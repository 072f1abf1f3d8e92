package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrFrameTooShort = errors.New("ethernet frame too short")
	ErrIPv4Header    = errors.New("invalid ipv4 header")
	ErrNotUDP        = errors.New("not a udp datagram")
)

// udpPayload walks an Ethernet II frame down to the UDP payload and returns
// it. Frames with an 802.1Q VLAN tag are accepted. Anything that is not
// IPv4/UDP is rejected so PCAP replay can skip unrelated traffic.
func udpPayload(frame []byte) ([]byte, error) {
	if len(frame) < 14 {
		return nil, ErrFrameTooShort
	}
	off := 14
	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType == 0x8100 {
		if len(frame) < 18 {
			return nil, ErrFrameTooShort
		}
		off = 18
		etherType = binary.BigEndian.Uint16(frame[16:18])
	}
	if etherType != 0x0800 {
		return nil, fmt.Errorf("%w: ether type 0x%04X", ErrNotUDP, etherType)
	}

	ip := frame[off:]
	if len(ip) < 20 || ip[0]>>4 != 4 {
		return nil, ErrIPv4Header
	}
	ihl := int(ip[0]&0x0F) * 4
	if ihl < 20 || len(ip) < ihl {
		return nil, ErrIPv4Header
	}
	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < ihl || totalLen > len(ip) {
		return nil, ErrIPv4Header
	}
	if ip[9] != 17 {
		return nil, fmt.Errorf("%w: ip protocol %d", ErrNotUDP, ip[9])
	}

	udp := ip[ihl:totalLen]
	if len(udp) < 8 {
		return nil, ErrNotUDP
	}
	udpLen := int(binary.BigEndian.Uint16(udp[4:6]))
	if udpLen < 8 || udpLen > len(udp) {
		return nil, ErrNotUDP
	}
	return udp[8:udpLen], nil
}
