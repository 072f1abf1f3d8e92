package asterix

import (
	"fmt"

	"example.com/astgate/internal/schema"
)

// itemLength computes the number of bytes the item occupies at the start of
// buf, without decoding it. It fails with ErrInsufficientData before any
// out-of-range read.
func itemLength(f *schema.Format, buf []byte) (int, error) {
	switch f.Kind {
	case schema.FormatFixed:
		if f.Length > len(buf) {
			return 0, fmt.Errorf("fixed item needs %d bytes, %d left: %w", f.Length, len(buf), ErrInsufficientData)
		}
		return f.Length, nil

	case schema.FormatVariable:
		return variableLength(f, buf)

	case schema.FormatRepetitive:
		if len(buf) < 1 {
			return 0, fmt.Errorf("repetitive item missing count byte: %w", ErrInsufficientData)
		}
		count := int(buf[0])
		size := f.Parts[0].Length
		total := 1 + count*size
		if total > len(buf) {
			return 0, fmt.Errorf("repetitive item needs %d bytes, %d left: %w", total, len(buf), ErrInsufficientData)
		}
		return total, nil

	case schema.FormatExplicit:
		if len(buf) < 1 {
			return 0, fmt.Errorf("explicit item missing length byte: %w", ErrInsufficientData)
		}
		total := 1 + int(buf[0])
		if total > len(buf) {
			return 0, fmt.Errorf("explicit item needs %d bytes, %d left: %w", total, len(buf), ErrInsufficientData)
		}
		return total, nil

	case schema.FormatCompound:
		return compoundLength(f, buf)

	case schema.FormatBDS:
		if len(buf) < 8 {
			return 0, fmt.Errorf("bds item needs 8 bytes, %d left: %w", len(buf), ErrInsufficientData)
		}
		return 8, nil
	}
	return 0, fmt.Errorf("unhandled format kind %v", f.Kind)
}

// variableLength walks the octet chain: each part's last octet carries the
// extension flag in its lowest bit. When the chain outlasts the declared
// parts the last part's layout repeats.
func variableLength(f *schema.Format, buf []byte) (int, error) {
	n := 0
	for partIdx := 0; ; partIdx++ {
		part := &f.Parts[minInt(partIdx, len(f.Parts)-1)]
		if n+part.Length > len(buf) {
			return 0, fmt.Errorf("variable item extension chain at byte %d runs past %d available: %w",
				n, len(buf), ErrInsufficientData)
		}
		n += part.Length
		if buf[n-1]&0x01 == 0 {
			return n, nil
		}
	}
}

// compoundLength walks the primary presence chain and sums the lengths of
// every activated secondary.
func compoundLength(f *schema.Format, buf []byte) (int, error) {
	primary, present, err := compoundPresence(f, buf)
	if err != nil {
		return 0, err
	}
	total := primary
	for _, idx := range present {
		sub := &f.Parts[idx]
		n, err := itemLength(sub, buf[total:])
		if err != nil {
			return 0, fmt.Errorf("compound subfield %s: %w", sub.Name, err)
		}
		total += n
	}
	return total, nil
}

// compoundPresence reads the one-octet-at-a-time primary chain and returns
// its length plus the indices of the activated secondaries, in presence
// order. The seven high bits of every primary octet are presence flags, the
// lowest bit continues the chain.
func compoundPresence(f *schema.Format, buf []byte) (int, []int, error) {
	primary := 0
	for {
		if primary >= len(buf) {
			return 0, nil, fmt.Errorf("compound primary chain exhausts buffer: %w", ErrInsufficientData)
		}
		oct := buf[primary]
		primary++
		if oct&0x01 == 0 {
			break
		}
	}
	var present []int
	pos := 0
	for i := 0; i < primary; i++ {
		for mask := byte(0x80); mask != 0x01; mask >>= 1 {
			pos++
			if buf[i]&mask == 0 {
				continue
			}
			if pos > len(f.Parts) {
				return 0, nil, fmt.Errorf("compound presence bit %d beyond %d declared subfields: %w",
					pos, len(f.Parts), ErrInsufficientData)
			}
			present = append(present, pos-1)
		}
	}
	return primary, present, nil
}

// decodeItem extracts the typed value tree for an item whose length n has
// already been established by itemLength.
func decodeItem(f *schema.Format, buf []byte, n int) FieldValue {
	switch f.Kind {
	case schema.FormatFixed:
		return FieldValue{Kind: f.Kind, Bits: decodeFixedBits(f.Bits, buf[:n])}

	case schema.FormatVariable:
		out := FieldValue{Kind: f.Kind}
		offset := 0
		for partIdx := 0; offset < n; partIdx++ {
			part := &f.Parts[minInt(partIdx, len(f.Parts)-1)]
			end := offset + part.Length
			if end > n {
				break
			}
			out.Parts = append(out.Parts, FieldValue{
				Kind: schema.FormatFixed,
				Bits: decodeFixedBits(part.Bits, buf[offset:end]),
			})
			offset = end
		}
		return out

	case schema.FormatRepetitive:
		out := FieldValue{Kind: f.Kind}
		item := &f.Parts[0]
		count := int(buf[0])
		offset := 1
		for i := 0; i < count; i++ {
			end := offset + item.Length
			out.Parts = append(out.Parts, FieldValue{
				Kind: schema.FormatFixed,
				Bits: decodeFixedBits(item.Bits, buf[offset:end]),
			})
			offset = end
		}
		return out

	case schema.FormatExplicit:
		raw := make([]byte, n-1)
		copy(raw, buf[1:n])
		return FieldValue{Kind: f.Kind, Raw: raw}

	case schema.FormatCompound:
		out := FieldValue{Kind: f.Kind}
		primary, present, err := compoundPresence(f, buf[:n])
		if err != nil {
			return out
		}
		offset := primary
		for _, idx := range present {
			sub := &f.Parts[idx]
			subLen, err := itemLength(sub, buf[offset:n])
			if err != nil {
				break
			}
			val := decodeItem(sub, buf[offset:offset+subLen], subLen)
			val.Name = sub.Name
			out.Parts = append(out.Parts, val)
			offset += subLen
		}
		return out

	case schema.FormatBDS:
		out := FieldValue{Kind: f.Kind, Register: buf[7]}
		for i := range f.Parts {
			if f.Parts[i].Register == out.Register {
				out.Bits = decodeFixedBits(f.Parts[i].Bits, buf[:7])
				return out
			}
		}
		out.Raw = make([]byte, 8)
		copy(out.Raw, buf[:8])
		return out
	}
	return FieldValue{Kind: f.Kind}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
