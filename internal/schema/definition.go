package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Definition is the declarative category description as decoded from YAML.
// It is the hand-off format between the configuration loader and the schema
// model; FromDefinition turns it into an immutable Category.
type Definition struct {
	Category int          `yaml:"category"`
	Name     string       `yaml:"name"`
	Fields   []FieldDef   `yaml:"fields"`
	UAP      []ProfileDef `yaml:"uap"`
}

type FieldDef struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	Format FormatDef `yaml:"format"`
}

// FormatDef is a tagged union: exactly one member must be set.
type FormatDef struct {
	Fixed      *FixedDef      `yaml:"fixed"`
	Variable   *VariableDef   `yaml:"variable"`
	Repetitive *RepetitiveDef `yaml:"repetitive"`
	Explicit   *ExplicitDef   `yaml:"explicit"`
	Compound   *CompoundDef   `yaml:"compound"`
	BDS        *BDSDef        `yaml:"bds"`
}

type FixedDef struct {
	Length int      `yaml:"length"`
	Bits   []BitDef `yaml:"bits"`
}

type VariableDef struct {
	Parts []FixedDef `yaml:"parts"`
}

type RepetitiveDef struct {
	Item FixedDef `yaml:"item"`
}

type ExplicitDef struct{}

type CompoundDef struct {
	Subfields []SubfieldDef `yaml:"subfields"`
}

type SubfieldDef struct {
	Name   string    `yaml:"name"`
	Format FormatDef `yaml:"format"`
}

type BDSDef struct {
	Registers []RegisterDef `yaml:"registers"`
}

// RegisterDef lays out the 7 data octets of one BDS register.
type RegisterDef struct {
	Register int      `yaml:"register"`
	Bits     []BitDef `yaml:"bits"`
}

type BitDef struct {
	Short  string            `yaml:"short"`
	Name   string            `yaml:"name"`
	Bit    int               `yaml:"bit"` // shorthand for from == to
	From   int               `yaml:"from"`
	To     int               `yaml:"to"`
	Encode string            `yaml:"encode"`
	Scale  float64           `yaml:"scale"`
	Unit   string            `yaml:"unit"`
	FX     bool              `yaml:"fx"`
	Values map[uint64]string `yaml:"values"`
}

type ProfileDef struct {
	Name        string   `yaml:"name"`
	Items       []string `yaml:"items"`
	SelectBit   int      `yaml:"selectBit"`
	SelectByte  int      `yaml:"selectByte"`
	SelectValue int      `yaml:"selectValue"`
}

// FromDefinition validates a declarative definition and builds the immutable
// Category. Validation failures for bit layouts wrap ErrMalformedBitSpec.
func FromDefinition(def Definition) (*Category, error) {
	if def.Category < 1 || def.Category > 255 {
		return nil, fmt.Errorf("category id %d out of range 1..255", def.Category)
	}
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("category %d: no fields", def.Category)
	}
	cat := &Category{
		ID:   def.Category,
		Name: strings.TrimSpace(def.Name),
		byID: make(map[string]int, len(def.Fields)),
	}
	for i, fd := range def.Fields {
		id := strings.TrimSpace(fd.ID)
		if id == "" {
			return nil, fmt.Errorf("category %d: fields[%d]: empty id", def.Category, i)
		}
		if _, dup := cat.byID[id]; dup {
			return nil, fmt.Errorf("category %d: duplicate field id %q", def.Category, id)
		}
		format, err := buildFormat(fd.Format)
		if err != nil {
			return nil, fmt.Errorf("category %d item %s: %w", def.Category, id, err)
		}
		cat.byID[id] = len(cat.Fields)
		cat.Fields = append(cat.Fields, Field{
			ID:     id,
			Name:   strings.TrimSpace(fd.Name),
			Format: format,
		})
	}

	if len(def.UAP) == 0 {
		return nil, fmt.Errorf("category %d: no UAP", def.Category)
	}
	defaults := 0
	for i, pd := range def.UAP {
		if len(pd.Items) == 0 {
			return nil, fmt.Errorf("category %d: uap[%d]: empty item list", def.Category, i)
		}
		if pd.SelectBit != 0 && pd.SelectByte != 0 {
			return nil, fmt.Errorf("category %d: uap[%d]: both selectBit and selectByte set", def.Category, i)
		}
		if pd.SelectValue < 0 || pd.SelectValue > 0xFF {
			return nil, fmt.Errorf("category %d: uap[%d]: selectValue out of range", def.Category, i)
		}
		p := Profile{
			Name:        strings.TrimSpace(pd.Name),
			Items:       make([]string, len(pd.Items)),
			SelectBit:   pd.SelectBit,
			SelectByte:  pd.SelectByte,
			SelectValue: byte(pd.SelectValue),
		}
		for j, item := range pd.Items {
			item = strings.TrimSpace(item)
			if item == "" || item == "-" {
				continue // spare FSPEC position
			}
			if _, ok := cat.byID[item]; !ok {
				return nil, fmt.Errorf("category %d: uap[%d] frn %d references %q: %w",
					def.Category, i, j+1, item, ErrUnknownField)
			}
			p.Items[j] = item
		}
		if !p.Conditional() {
			defaults++
		}
		cat.Profiles = append(cat.Profiles, p)
	}
	if defaults > 1 {
		return nil, fmt.Errorf("category %d: %d unconditional UAP profiles, at most one allowed", def.Category, defaults)
	}
	return cat, nil
}

func buildFormat(fd FormatDef) (Format, error) {
	set := 0
	for _, present := range []bool{
		fd.Fixed != nil, fd.Variable != nil, fd.Repetitive != nil,
		fd.Explicit != nil, fd.Compound != nil, fd.BDS != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return Format{}, fmt.Errorf("format must declare exactly one variant, got %d", set)
	}

	switch {
	case fd.Fixed != nil:
		return buildFixed(*fd.Fixed)

	case fd.Variable != nil:
		if len(fd.Variable.Parts) == 0 {
			return Format{}, fmt.Errorf("variable format with no parts")
		}
		out := Format{Kind: FormatVariable}
		for i, part := range fd.Variable.Parts {
			built, err := buildFixed(part)
			if err != nil {
				return Format{}, fmt.Errorf("variable part %d: %w", i+1, err)
			}
			out.Parts = append(out.Parts, built)
		}
		return out, nil

	case fd.Repetitive != nil:
		item, err := buildFixed(fd.Repetitive.Item)
		if err != nil {
			return Format{}, fmt.Errorf("repetitive item: %w", err)
		}
		return Format{Kind: FormatRepetitive, Parts: []Format{item}}, nil

	case fd.Explicit != nil:
		return Format{Kind: FormatExplicit}, nil

	case fd.Compound != nil:
		if len(fd.Compound.Subfields) == 0 {
			return Format{}, fmt.Errorf("compound format with no subfields")
		}
		out := Format{Kind: FormatCompound}
		for i, sub := range fd.Compound.Subfields {
			name := strings.TrimSpace(sub.Name)
			if name == "" {
				return Format{}, fmt.Errorf("compound subfield %d: empty name", i+1)
			}
			built, err := buildFormat(sub.Format)
			if err != nil {
				return Format{}, fmt.Errorf("compound subfield %q: %w", name, err)
			}
			built.Name = name
			out.Parts = append(out.Parts, built)
		}
		return out, nil

	default: // BDS
		out := Format{Kind: FormatBDS, Length: 8}
		seen := make(map[int]bool)
		for _, reg := range fd.BDS.Registers {
			if reg.Register < 0 || reg.Register > 0xFF {
				return Format{}, fmt.Errorf("bds register 0x%X out of range", reg.Register)
			}
			if seen[reg.Register] {
				return Format{}, fmt.Errorf("duplicate bds register 0x%02X", reg.Register)
			}
			seen[reg.Register] = true
			layout, err := buildFixed(FixedDef{Length: 7, Bits: reg.Bits})
			if err != nil {
				return Format{}, fmt.Errorf("bds register 0x%02X: %w", reg.Register, err)
			}
			layout.Register = byte(reg.Register)
			out.Parts = append(out.Parts, layout)
		}
		return out, nil
	}
}

func buildFixed(def FixedDef) (Format, error) {
	if def.Length < 1 {
		return Format{}, fmt.Errorf("fixed length %d invalid", def.Length)
	}
	out := Format{Kind: FormatFixed, Length: def.Length}
	for i, bd := range def.Bits {
		spec, err := buildBitSpec(bd, def.Length*8)
		if err != nil {
			return Format{}, fmt.Errorf("bits[%d] (%s): %w", i, bd.Short, err)
		}
		out.Bits = append(out.Bits, spec)
	}
	if err := checkOverlap(out.Bits); err != nil {
		return Format{}, err
	}
	return out, nil
}

func buildBitSpec(def BitDef, totalBits int) (BitSpec, error) {
	from, to := def.From, def.To
	if def.Bit != 0 {
		if from != 0 || to != 0 {
			return BitSpec{}, fmt.Errorf("%w: bit and from/to are exclusive", ErrMalformedBitSpec)
		}
		from, to = def.Bit, def.Bit
	}
	if from < 1 || to < from || to > totalBits {
		return BitSpec{}, fmt.Errorf("%w: range [%d,%d] outside 1..%d", ErrMalformedBitSpec, from, to, totalBits)
	}
	enc, err := parseEncoding(def.Encode)
	if err != nil {
		return BitSpec{}, err
	}
	var values map[uint64]string
	if len(def.Values) > 0 {
		values = make(map[uint64]string, len(def.Values))
		for k, v := range def.Values {
			values[k] = v
		}
	}
	return BitSpec{
		Short:    strings.TrimSpace(def.Short),
		Name:     strings.TrimSpace(def.Name),
		From:     from,
		To:       to,
		Encoding: enc,
		Scale:    def.Scale,
		Unit:     strings.TrimSpace(def.Unit),
		FX:       def.FX,
		Values:   values,
	}, nil
}

func parseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unsigned":
		return EncodeUnsigned, nil
	case "signed":
		return EncodeSigned, nil
	case "sixbit", "6bitchar":
		return EncodeSixBitChar, nil
	case "hex":
		return EncodeHex, nil
	case "octal":
		return EncodeOctal, nil
	case "ascii":
		return EncodeASCII, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

func checkOverlap(specs []BitSpec) error {
	if len(specs) < 2 {
		return nil
	}
	sorted := make([]BitSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.From <= prev.To {
			return fmt.Errorf("%w: %s [%d,%d] overlaps %s [%d,%d]",
				ErrMalformedBitSpec, prev.Short, prev.From, prev.To, cur.Short, cur.From, cur.To)
		}
	}
	return nil
}
