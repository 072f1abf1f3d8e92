package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// buildFrame assembles an Ethernet II / IPv4 / UDP frame carrying payload.
func buildFrame(t *testing.T, payload []byte, proto uint8) []byte {
	t.Helper()
	udpLen := 8 + len(payload)
	ipLen := 20 + udpLen

	frame := make([]byte, 14+ipLen)
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)

	ip := frame[14:]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipLen))
	ip[8] = 64
	ip[9] = proto
	copy(ip[12:16], []byte{10, 0, 0, 1})
	copy(ip[16:20], []byte{10, 0, 0, 2})

	udp := ip[20:]
	binary.BigEndian.PutUint16(udp[0:2], 8600)
	binary.BigEndian.PutUint16(udp[2:4], 8600)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	copy(udp[8:], payload)
	return frame
}

func TestUDPPayload(t *testing.T) {
	payload := []byte{0x30, 0x00, 0x06, 0x80, 0x19, 0x2A}
	frame := buildFrame(t, payload, 17)

	got, err := udpPayload(frame)
	if err != nil {
		t.Fatalf("udpPayload returned error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestUDPPayloadVLAN(t *testing.T) {
	payload := []byte{0xAA, 0xBB}
	inner := buildFrame(t, payload, 17)

	// Insert an 802.1Q tag between the MAC addresses and the ether type.
	frame := make([]byte, 0, len(inner)+4)
	frame = append(frame, inner[:12]...)
	frame = append(frame, 0x81, 0x00, 0x00, 0x64)
	frame = append(frame, inner[12:]...)

	got, err := udpPayload(frame)
	if err != nil {
		t.Fatalf("udpPayload returned error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestUDPPayloadRejectsNonUDP(t *testing.T) {
	frame := buildFrame(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 6) // TCP
	if _, err := udpPayload(frame); !errors.Is(err, ErrNotUDP) {
		t.Fatalf("expected ErrNotUDP, got %v", err)
	}
}

func TestUDPPayloadRejectsShortFrame(t *testing.T) {
	if _, err := udpPayload([]byte{1, 2, 3}); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("expected ErrFrameTooShort, got %v", err)
	}
}

func writePCAP(t *testing.T, path string, order binary.ByteOrder, magicFirst bool, frames [][]byte) {
	t.Helper()
	var buf bytes.Buffer

	hdr := make([]byte, pcapGlobalHdrLen)
	if magicFirst {
		binary.BigEndian.PutUint32(hdr[0:4], pcapMagicBE)
	} else {
		binary.BigEndian.PutUint32(hdr[0:4], pcapMagicLE)
	}
	order.PutUint16(hdr[4:6], 2)
	order.PutUint16(hdr[6:8], 4)
	order.PutUint32(hdr[16:20], 65535)
	order.PutUint32(hdr[20:24], linkTypeEthernet)
	buf.Write(hdr)

	for i, frame := range frames {
		rec := make([]byte, pcapRecordHdrLen)
		order.PutUint32(rec[0:4], uint32(1700000000+i))
		order.PutUint32(rec[4:8], 250000)
		order.PutUint32(rec[8:12], uint32(len(frame)))
		order.PutUint32(rec[12:16], uint32(len(frame)))
		buf.Write(rec)
		buf.Write(frame)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pcap: %v", err)
	}
}

func TestReadPCAP(t *testing.T) {
	payload := []byte{0x30, 0x00, 0x08, 0x80, 0x19, 0x2A, 0x00, 0x50}
	frames := [][]byte{
		buildFrame(t, payload, 17),
		buildFrame(t, []byte{1, 2, 3}, 6), // non-UDP, skipped
		buildFrame(t, []byte{0xAB}, 17),
	}
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePCAP(t, path, binary.BigEndian, true, frames)

	captures, err := ReadPCAP(path)
	if err != nil {
		t.Fatalf("ReadPCAP returned error: %v", err)
	}
	if len(captures) != 2 {
		t.Fatalf("captures = %d, want 2", len(captures))
	}
	if !bytes.Equal(captures[0].Data, payload) {
		t.Fatalf("first capture = %x, want %x", captures[0].Data, payload)
	}
	if captures[0].Timestamp != 1700000000.25 {
		t.Fatalf("timestamp = %v, want 1700000000.25", captures[0].Timestamp)
	}
}

func TestReadPCAPLittleEndian(t *testing.T) {
	payload := []byte{0xDE, 0xAD}
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePCAP(t, path, binary.LittleEndian, false, [][]byte{buildFrame(t, payload, 17)})

	captures, err := ReadPCAP(path)
	if err != nil {
		t.Fatalf("ReadPCAP returned error: %v", err)
	}
	if len(captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(captures))
	}
	if !bytes.Equal(captures[0].Data, payload) {
		t.Fatalf("capture = %x, want %x", captures[0].Data, payload)
	}
}

func TestReadPCAPRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pcap")
	if err := os.WriteFile(path, []byte("plain text, not a capture"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ReadPCAP(path); !errors.Is(err, ErrNotPCAP) {
		t.Fatalf("expected ErrNotPCAP, got %v", err)
	}
}

func TestReadPCAPTruncatedRecord(t *testing.T) {
	payload := []byte{0x01, 0x02}
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePCAP(t, path, binary.BigEndian, true, [][]byte{buildFrame(t, payload, 17)})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pcap: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-5], 0o644); err != nil {
		t.Fatalf("truncate pcap: %v", err)
	}

	captures, err := ReadPCAP(path)
	if err != nil {
		t.Fatalf("ReadPCAP returned error: %v", err)
	}
	if len(captures) != 0 {
		t.Fatalf("captures = %d, want 0", len(captures))
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.ast")
	want := []byte{0x30, 0x00, 0x03}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	capture, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if !bytes.Equal(capture.Data, want) {
		t.Fatalf("data = %x, want %x", capture.Data, want)
	}
	if capture.Timestamp == 0 {
		t.Fatalf("expected non-zero timestamp")
	}
}
