package ingest

import (
	"fmt"
	"os"
	"time"
)

// ReadFile loads a raw ASTERIX capture file as a single Capture. The file
// modification time is used as the capture timestamp.
func ReadFile(path string) (Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Capture{}, fmt.Errorf("read %s: %w", path, err)
	}
	ts := 0.0
	if fi, serr := os.Stat(path); serr == nil {
		ts = float64(fi.ModTime().UnixNano()) / float64(time.Second)
	}
	return Capture{Data: data, Timestamp: ts}, nil
}
