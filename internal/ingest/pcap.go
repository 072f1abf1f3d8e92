package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"example.com/astgate/internal/common"
)

const (
	pcapMagicBE = 0xA1B2C3D4
	pcapMagicLE = 0xD4C3B2A1

	pcapGlobalHdrLen = 24
	pcapRecordHdrLen = 16

	linkTypeEthernet = 1
)

var ErrNotPCAP = errors.New("not a pcap capture file")

// ReadPCAP extracts ASTERIX payloads from a classic libpcap capture file.
// Each UDP datagram found in the capture becomes one Capture carrying the
// record's timestamp. Frames that are not IPv4/UDP, and truncated records,
// are skipped with a log line rather than failing the whole file.
func ReadPCAP(path string) ([]Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) < pcapGlobalHdrLen {
		return nil, ErrNotPCAP
	}

	var order binary.ByteOrder
	switch binary.BigEndian.Uint32(data[0:4]) {
	case pcapMagicBE:
		order = binary.BigEndian
	case pcapMagicLE:
		order = binary.LittleEndian
	default:
		return nil, ErrNotPCAP
	}
	linkType := order.Uint32(data[20:24])
	if linkType != linkTypeEthernet {
		return nil, fmt.Errorf("pcap link type %d not supported", linkType)
	}

	var captures []Capture
	off := pcapGlobalHdrLen
	for off+pcapRecordHdrLen <= len(data) {
		sec := order.Uint32(data[off : off+4])
		usec := order.Uint32(data[off+4 : off+8])
		inclLen := int(order.Uint32(data[off+8 : off+12]))
		off += pcapRecordHdrLen
		if inclLen < 0 || off+inclLen > len(data) {
			common.Logf("pcap %s: truncated record at offset %d", path, off-pcapRecordHdrLen)
			break
		}
		frame := data[off : off+inclLen]
		off += inclLen

		payload, perr := udpPayload(frame)
		if perr != nil {
			common.Logf("pcap %s: skipping frame: %v", path, perr)
			continue
		}
		if len(payload) == 0 {
			continue
		}
		captures = append(captures, Capture{
			Data:      append([]byte(nil), payload...),
			Timestamp: float64(sec) + float64(usec)/1e6,
		})
	}
	return captures, nil
}
