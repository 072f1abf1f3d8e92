// Package ingest reads ASTERIX byte streams from files, PCAP captures,
// and UDP sockets, and hands them to the decoder as timestamped payloads.
package ingest

// Capture is one delivery unit of raw ASTERIX bytes. Timestamp is the
// capture time in seconds since the Unix epoch, or zero when the source
// carries no timing information.
type Capture struct {
	Data      []byte
	Timestamp float64
}
