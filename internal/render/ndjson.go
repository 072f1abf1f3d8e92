package render

import (
	"encoding/json"
	"io"
	"sync"
)

// NDJSONWriter streams newline-delimited JSON objects to the underlying
// writer. It is safe for concurrent use.
type NDJSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{writer: w}
}

// WriteObject marshals the provided value to JSON and writes it followed by
// a newline.
func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	_, err = w.writer.Write([]byte("\n"))
	return err
}
