package asterix

import (
	"example.com/astgate/internal/schema"
)

// sixBitAlphabet is the IA-5 subset used by Mode S aircraft identification:
// index 1-26 map to A-Z, 48-57 to the digits, everything else is blank.
var sixBitAlphabet = [64]byte{
	' ', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', ' ', ' ', ' ', ' ', ' ',
	' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ' ', ' ', ' ', ' ', ' ', ' ',
}

// bitAt reads bit n of data under the ASTERIX numbering: bit 1 is the least
// significant bit of the last octet, numbers grow right to left.
func bitAt(data []byte, n int) byte {
	idx := len(data) - 1 - (n-1)/8
	if idx < 0 || idx >= len(data) {
		return 0
	}
	if data[idx]&(1<<uint((n-1)%8)) != 0 {
		return 1
	}
	return 0
}

// extractBits returns the unsigned value of the inclusive bit range
// [from,to]. Ranges wider than 64 bits keep the lowest 64.
func extractBits(data []byte, from, to int) uint64 {
	var val uint64
	for n := to; n >= from; n-- {
		val = val<<1 | uint64(bitAt(data, n))
	}
	return val
}

// signBits reinterprets a width-bit unsigned extraction as two's complement.
func signBits(raw uint64, width int) int64 {
	if width <= 0 || width >= 64 {
		return int64(raw)
	}
	if raw&(1<<uint(width-1)) != 0 {
		return int64(raw) - (1 << uint(width))
	}
	return int64(raw)
}

// groupBits splits the bit range into MSB-first groups of the given width
// and returns one value per group. ok is false when the range is not a
// whole number of groups; such encodings render as "???" rather than fail.
func groupBits(data []byte, from, to, width int) ([]byte, bool) {
	total := to - from + 1
	if width < 1 || total < width || total%width != 0 {
		return nil, false
	}
	groups := make([]byte, 0, total/width)
	var val byte
	outbits := 0
	for n := to; n >= from; n-- {
		val = val<<1 | bitAt(data, n)
		if outbits++; outbits == width {
			groups = append(groups, val)
			val = 0
			outbits = 0
		}
	}
	return groups, true
}

const badEncoding = "???"

func sixBitText(data []byte, from, to int) string {
	groups, ok := groupBits(data, from, to, 6)
	if !ok {
		return badEncoding
	}
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[i] = sixBitAlphabet[g&0x3F]
	}
	return string(out)
}

func hexText(data []byte, from, to int) string {
	groups, ok := groupBits(data, from, to, 4)
	if !ok {
		return badEncoding
	}
	const digits = "0123456789ABCDEF"
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[i] = digits[g&0x0F]
	}
	return string(out)
}

func octalText(data []byte, from, to int) string {
	groups, ok := groupBits(data, from, to, 3)
	if !ok {
		return badEncoding
	}
	out := make([]byte, len(groups))
	for i, g := range groups {
		out[i] = '0' + (g & 0x07)
	}
	return string(out)
}

func asciiText(data []byte, from, to int) string {
	groups, ok := groupBits(data, from, to, 8)
	if !ok {
		return badEncoding
	}
	return string(groups)
}

// decodeBitSpec extracts and interprets one bit spec from a fixed layout.
func decodeBitSpec(spec schema.BitSpec, data []byte) BitValue {
	out := BitValue{
		Short: spec.Short,
		Name:  spec.Name,
		Unit:  spec.Unit,
		FX:    spec.FX,
	}
	raw := extractBits(data, spec.From, spec.To)
	out.Raw = raw
	scale := spec.Scale
	if scale == 0 {
		scale = 1
	}
	switch spec.Encoding {
	case schema.EncodeSigned:
		out.Signed = signBits(raw, spec.Width())
		out.Value = float64(out.Signed) * scale
	case schema.EncodeSixBitChar:
		out.IsText = true
		out.Str = sixBitText(data, spec.From, spec.To)
	case schema.EncodeHex:
		out.IsText = true
		out.Str = hexText(data, spec.From, spec.To)
	case schema.EncodeOctal:
		out.IsText = true
		out.Str = octalText(data, spec.From, spec.To)
	case schema.EncodeASCII:
		out.IsText = true
		out.Str = asciiText(data, spec.From, spec.To)
	default:
		out.Signed = int64(raw)
		out.Value = float64(raw) * scale
	}
	if spec.Values != nil {
		if meaning, ok := spec.Values[raw]; ok {
			out.Meaning = meaning
		}
	}
	return out
}

// decodeFixedBits interprets every declared bit spec of a fixed layout.
// Declared gaps stay undecoded.
func decodeFixedBits(specs []schema.BitSpec, data []byte) []BitValue {
	if len(specs) == 0 {
		return nil
	}
	out := make([]BitValue, 0, len(specs))
	for _, spec := range specs {
		out = append(out, decodeBitSpec(spec, data))
	}
	return out
}
