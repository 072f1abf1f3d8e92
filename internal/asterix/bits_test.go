package asterix

import (
	"testing"

	"example.com/astgate/internal/schema"
)

func TestBitAt(t *testing.T) {
	data := []byte{0x80, 0x01}
	if got := bitAt(data, 1); got != 1 {
		t.Fatalf("bit 1 = %d, want 1", got)
	}
	if got := bitAt(data, 16); got != 1 {
		t.Fatalf("bit 16 = %d, want 1", got)
	}
	for n := 2; n <= 15; n++ {
		if got := bitAt(data, n); got != 0 {
			t.Fatalf("bit %d = %d, want 0", n, got)
		}
	}
}

func TestExtractBits(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		from int
		to   int
		want uint64
	}{
		{name: "straddles octets", data: []byte{0x03, 0xC0}, from: 7, to: 10, want: 0x0F},
		{name: "single bit", data: []byte{0x00, 0x04}, from: 3, to: 3, want: 1},
		{name: "full range", data: []byte{0x12, 0x34}, from: 1, to: 16, want: 0x1234},
		{name: "low nibble", data: []byte{0xAB}, from: 1, to: 4, want: 0x0B},
		{name: "high nibble", data: []byte{0xAB}, from: 5, to: 8, want: 0x0A},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractBits(tc.data, tc.from, tc.to); got != tc.want {
				t.Fatalf("extractBits(%v, %d, %d) = %#x, want %#x", tc.data, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestSignBits(t *testing.T) {
	tests := []struct {
		raw   uint64
		width int
		want  int64
	}{
		{raw: 0xFF, width: 8, want: -1},
		{raw: 0x7F, width: 8, want: 127},
		{raw: 0x80, width: 8, want: -128},
		{raw: 0x2000, width: 14, want: -8192},
		{raw: 0x1FFF, width: 14, want: 8191},
		{raw: 0, width: 8, want: 0},
	}
	for _, tc := range tests {
		if got := signBits(tc.raw, tc.width); got != tc.want {
			t.Fatalf("signBits(%#x, %d) = %d, want %d", tc.raw, tc.width, got, tc.want)
		}
	}
}

func TestSixBitText(t *testing.T) {
	// "AB": groups 000001 000010 packed into the low 12 bits.
	data := []byte{0x00, 0x42}
	if got := sixBitText(data, 1, 12); got != "AB" {
		t.Fatalf("sixBitText = %q, want %q", got, "AB")
	}
}

func TestSixBitTextDigitsAndBlanks(t *testing.T) {
	// Codes 48 and 27 in the low 12 bits: "0" followed by a blank.
	// 110000 011011 -> 0xC1B.
	data := []byte{0x0C, 0x1B}
	if got := sixBitText(data, 1, 12); got != "0 " {
		t.Fatalf("sixBitText = %q, want %q", got, "0 ")
	}
}

func TestOctalText(t *testing.T) {
	// Mode-3/A code 7500 in the low 12 bits.
	data := []byte{0x0F, 0x40}
	if got := octalText(data, 1, 12); got != "7500" {
		t.Fatalf("octalText = %q, want %q", got, "7500")
	}
}

func TestHexText(t *testing.T) {
	data := []byte{0xAB, 0xCD, 0xEF}
	if got := hexText(data, 1, 24); got != "ABCDEF" {
		t.Fatalf("hexText = %q, want %q", got, "ABCDEF")
	}
}

func TestTextEncodingsBadMultiple(t *testing.T) {
	data := []byte{0xFF, 0xFF}
	if got := sixBitText(data, 1, 10); got != badEncoding {
		t.Fatalf("sixBitText on 10 bits = %q, want %q", got, badEncoding)
	}
	if got := hexText(data, 1, 10); got != badEncoding {
		t.Fatalf("hexText on 10 bits = %q, want %q", got, badEncoding)
	}
	if got := octalText(data, 1, 10); got != badEncoding {
		t.Fatalf("octalText on 10 bits = %q, want %q", got, badEncoding)
	}
	if got := asciiText(data, 1, 10); got != badEncoding {
		t.Fatalf("asciiText on 10 bits = %q, want %q", got, badEncoding)
	}
}

func TestDecodeBitSpecScaling(t *testing.T) {
	spec := schema.BitSpec{Short: "FL", From: 1, To: 14, Encoding: schema.EncodeSigned, Scale: 0.25}
	// -8 in 14 bits: 0x3FF8.
	got := decodeBitSpec(spec, []byte{0x3F, 0xF8})
	if got.Signed != -8 {
		t.Fatalf("Signed = %d, want -8", got.Signed)
	}
	if got.Value != -2 {
		t.Fatalf("Value = %v, want -2", got.Value)
	}
}

func TestDecodeBitSpecMeaning(t *testing.T) {
	spec := schema.BitSpec{
		Short:  "TYP",
		From:   6,
		To:     8,
		Values: map[uint64]string{2: "Single SSR detection"},
	}
	got := decodeBitSpec(spec, []byte{0x40})
	if got.Raw != 2 {
		t.Fatalf("Raw = %d, want 2", got.Raw)
	}
	if got.Meaning != "Single SSR detection" {
		t.Fatalf("Meaning = %q, want %q", got.Meaning, "Single SSR detection")
	}
}

func TestDecodeBitSpecDefaultScale(t *testing.T) {
	spec := schema.BitSpec{Short: "SAC", From: 9, To: 16}
	got := decodeBitSpec(spec, []byte{0x19, 0x2A})
	if got.Raw != 0x19 {
		t.Fatalf("Raw = %#x, want 0x19", got.Raw)
	}
	if got.Value != 25 {
		t.Fatalf("Value = %v, want 25", got.Value)
	}
}
