// Package asterix decodes ASTERIX data blocks into a labelled value tree,
// driven by category schemas from the schema package. Decoding is pure: a
// Decoder holds only a read-only schema registry and an optional metrics
// recorder, and every call returns a freshly built tree owned by the caller.
package asterix

import (
	"errors"

	"example.com/astgate/internal/schema"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownCategory  = errors.New("unknown category")
)

// Status marks whether a record or block decoded in full.
type Status int

const (
	StatusComplete Status = iota
	StatusTruncated
	// StatusSkipped marks a block whose category has no loaded schema. Its
	// bytes were stepped over; nothing inside it was decoded.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusTruncated:
		return "truncated"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Message is the decoded result of one input buffer.
type Message struct {
	Timestamp float64 // capture timestamp, seconds
	Blocks    []*Block
}

// Block groups the records of one category occurrence in the stream.
type Block struct {
	Category  int
	Length    int // declared block length, clamped to the buffer
	Timestamp float64
	Status    Status
	Records   []*Record

	// Trailing holds leftover block bytes that could not start another
	// record. Diagnostic only; never part of a record.
	Trailing []byte
}

// Record is one decoded category occurrence.
type Record struct {
	Category  int
	Length    int // bytes consumed, FSPEC included
	Timestamp float64
	FSPEC     []byte
	CRC       uint32
	Status    Status
	Items     []*DataItem
}

// Item returns the decoded data item with the given field id, or nil.
func (r *Record) Item(fieldID string) *DataItem {
	for _, it := range r.Items {
		if it.FieldID == fieldID {
			return it
		}
	}
	return nil
}

// DataItem carries the decoded value of one field. The field description is
// referenced by id; renderers resolve names and units through the registry.
type DataItem struct {
	FieldID string
	Value   FieldValue
}

// FieldValue is the decoded content of a data item, shaped by the format
// kind that produced it:
//
//	Fixed:      Bits
//	Variable:   Parts, one per consumed octet group, each carrying Bits
//	Repetitive: Parts, one per repetition
//	Explicit:   Raw (opaque payload, length prefix stripped)
//	Compound:   Parts, one per present secondary, Name set
//	BDS:        Register + either Bits (known register) or Raw (dump)
type FieldValue struct {
	Kind     schema.FormatKind
	Name     string
	Bits     []BitValue
	Parts    []FieldValue
	Raw      []byte
	Register byte
}

// BitValue is one decoded bit-spec: the raw extracted bits plus their
// interpreted form.
type BitValue struct {
	Short   string
	Name    string
	Raw     uint64  // extracted bits, unsigned view
	Signed  int64   // two's-complement view, valid for signed encoding
	Value   float64 // scaled numeric value
	Str     string  // textual encodings (sixbit, hex, octal, ascii)
	IsText  bool
	Unit    string
	Meaning string // matched enumeration, empty when none
	FX      bool
}
