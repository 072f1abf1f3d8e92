// Package schema holds the immutable per-category description of an ASTERIX
// category: its data items, their binary layouts and the UAP profiles that
// map FSPEC positions to items. A Category is built once from a declarative
// definition and is then safe for concurrent read-only use.
package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownField      = errors.New("unknown field id")
	ErrNoMatchingProfile = errors.New("no matching UAP profile")
	ErrMalformedBitSpec  = errors.New("malformed bit specification")
)

// FormatKind enumerates the closed set of data item layouts.
type FormatKind int

const (
	FormatFixed FormatKind = iota
	FormatVariable
	FormatRepetitive
	FormatExplicit
	FormatCompound
	FormatBDS
)

func (k FormatKind) String() string {
	switch k {
	case FormatFixed:
		return "fixed"
	case FormatVariable:
		return "variable"
	case FormatRepetitive:
		return "repetitive"
	case FormatExplicit:
		return "explicit"
	case FormatCompound:
		return "compound"
	case FormatBDS:
		return "bds"
	}
	return fmt.Sprintf("format(%d)", int(k))
}

// Encoding selects how a bit range is interpreted.
type Encoding int

const (
	EncodeUnsigned Encoding = iota
	EncodeSigned
	EncodeSixBitChar
	EncodeHex
	EncodeOctal
	EncodeASCII
)

func (e Encoding) String() string {
	switch e {
	case EncodeUnsigned:
		return "unsigned"
	case EncodeSigned:
		return "signed"
	case EncodeSixBitChar:
		return "sixbit"
	case EncodeHex:
		return "hex"
	case EncodeOctal:
		return "octal"
	case EncodeASCII:
		return "ascii"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// BitSpec names one sub-field of a fixed layout. Bits are numbered 1-based
// with bit 1 the least significant bit of the layout's last octet, growing
// right to left into earlier octets. From <= To.
type BitSpec struct {
	Short    string
	Name     string
	From     int
	To       int
	Encoding Encoding
	Scale    float64 // 0 means unscaled
	Unit     string
	FX       bool // extension flag bit of a variable part
	Values   map[uint64]string
}

// Width returns the number of bits covered by the spec.
func (b BitSpec) Width() int {
	return b.To - b.From + 1
}

// Format is the tagged codec spec of a data item. Exactly the fields
// relevant to Kind are populated:
//
//	Fixed:      Length, Bits
//	Variable:   Parts (ordered fixed parts; the last one repeats)
//	Repetitive: Parts[0] (layout of one repetition)
//	Explicit:   nothing (opaque payload behind a length prefix)
//	Compound:   Parts (secondary subfields in presence-bit order, Name set)
//	BDS:        Parts (7-octet fixed register layouts, Register set)
type Format struct {
	Kind     FormatKind
	Length   int
	Bits     []BitSpec
	Parts    []Format
	Name     string
	Register byte
}

// Field describes one data item of a category.
type Field struct {
	ID     string // item number, e.g. "010"
	Name   string
	Format Format
}

// Profile is one UAP: the ordered FRN to field id mapping plus an optional
// selector that decides whether this profile applies to a given record.
// Items holds one entry per FRN, 1-based at index 0; empty strings mark
// spare FSPEC positions.
type Profile struct {
	Name  string
	Items []string

	// Selector. SelectBit, when non-zero, names a 1-based MSB-first bit
	// position in the record body (after the FSPEC) that must be set.
	// SelectByte, when non-zero, names a 1-based byte after the FSPEC that
	// must equal SelectValue. A profile with neither is the default.
	SelectBit   int
	SelectByte  int
	SelectValue byte
}

// Conditional reports whether the profile carries a selector.
func (p *Profile) Conditional() bool {
	return p.SelectBit != 0 || p.SelectByte != 0
}

// FieldID resolves an FRN (1-based) to a field id. The empty string means a
// spare position; ok is false when the FRN is beyond the profile.
func (p *Profile) FieldID(frn int) (string, bool) {
	if frn < 1 || frn > len(p.Items) {
		return "", false
	}
	return p.Items[frn-1], true
}

// Category is the immutable schema for one ASTERIX category.
type Category struct {
	ID       int
	Name     string
	Fields   []Field
	Profiles []Profile

	byID map[string]int
}

// Field returns the description of the item with the given id.
func (c *Category) Field(id string) (*Field, error) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("category %d item %q: %w", c.ID, id, ErrUnknownField)
	}
	return &c.Fields[idx], nil
}

// SelectProfile evaluates the profile selectors against a record buffer (the
// buffer starts at the record's FSPEC) and returns the first match, or the
// default profile when no conditional one matches. Every selector is tried
// before the default is used, even when the default is declared first.
// Selector indexing skips the FSPEC using its continuation bits, mirroring
// the record walk.
func (c *Category) SelectProfile(record []byte) (*Profile, error) {
	var fallback *Profile
	for i := range c.Profiles {
		p := &c.Profiles[i]
		switch {
		case p.SelectBit != 0:
			if bitAfterFSPEC(record, p.SelectBit) {
				return p, nil
			}
		case p.SelectByte != 0:
			if b, ok := byteAfterFSPEC(record, p.SelectByte); ok && b == p.SelectValue {
				return p, nil
			}
		default:
			if fallback == nil {
				fallback = p
			}
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("category %d: %w", c.ID, ErrNoMatchingProfile)
}

// skipFSPEC returns the offset of the first byte after the FSPEC chain.
func skipFSPEC(record []byte) int {
	pos := 0
	for pos < len(record) && record[pos]&0x01 != 0 {
		pos++
	}
	return pos + 1
}

func bitAfterFSPEC(record []byte, bit int) bool {
	if bit < 1 {
		return false
	}
	pos := skipFSPEC(record) + (bit-1)/8
	if pos >= len(record) {
		return false
	}
	mask := byte(0x80) >> ((bit - 1) % 8)
	return record[pos]&mask != 0
}

func byteAfterFSPEC(record []byte, nr int) (byte, bool) {
	if nr < 1 {
		return 0, false
	}
	pos := skipFSPEC(record) + nr - 1
	if pos >= len(record) {
		return 0, false
	}
	return record[pos], true
}
