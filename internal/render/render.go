// Package render serializes decoded ASTERIX trees. Field names, units and
// enumerated meanings are resolved against the schema registry by id, so the
// decoded tree itself stays free of schema references.
package render

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"example.com/astgate/internal/asterix"
	"example.com/astgate/internal/schema"
)

// Mode selects the output form.
type Mode int

const (
	// ModeLine prints one line per record.
	ModeLine Mode = iota
	// ModeText prints an indented multi-line listing.
	ModeText
	// ModeJSON prints compact JSON: short names mapped to scaled values.
	ModeJSON
	// ModeJSONHuman adds units and enumerated meanings.
	ModeJSONHuman
	// ModeJSONVerbose additionally carries raw bit values and field names.
	ModeJSONVerbose
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "line":
		return ModeLine, nil
	case "text":
		return ModeText, nil
	case "json":
		return ModeJSON, nil
	case "json-human", "human":
		return ModeJSONHuman, nil
	case "json-verbose", "verbose":
		return ModeJSONVerbose, nil
	}
	return 0, fmt.Errorf("unknown render mode %q", s)
}

// Renderer converts decoded messages into the selected output form.
type Renderer struct {
	reg *schema.Registry
}

func New(reg *schema.Registry) *Renderer {
	return &Renderer{reg: reg}
}

// Write renders every record of the message to w, one record per line for
// the line and JSON modes, an indented listing for text mode.
func (r *Renderer) Write(w io.Writer, msg *asterix.Message, mode Mode) error {
	for _, block := range msg.Blocks {
		if block.Status == asterix.StatusSkipped {
			if mode == ModeLine || mode == ModeText {
				if _, err := fmt.Fprintf(w, "CAT%03d skipped (no schema loaded, %d bytes)\n",
					block.Category, block.Length); err != nil {
					return err
				}
			}
			continue
		}
		for _, rec := range block.Records {
			var err error
			switch mode {
			case ModeLine:
				_, err = io.WriteString(w, r.RecordLine(rec)+"\n")
			case ModeText:
				err = r.writeRecordText(w, rec)
			default:
				var data []byte
				data, err = json.Marshal(r.RecordObject(rec, mode))
				if err == nil {
					data = append(data, '\n')
					_, err = w.Write(data)
				}
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordObject builds the JSON-ready representation of one record.
func (r *Renderer) RecordObject(rec *asterix.Record, mode Mode) map[string]any {
	cat, _ := r.reg.Category(rec.Category)
	items := make(map[string]any, len(rec.Items))
	for _, item := range rec.Items {
		items["I"+item.FieldID] = r.itemValue(cat, item, mode)
	}
	obj := map[string]any{
		"cat":    rec.Category,
		"ts":     rec.Timestamp,
		"status": rec.Status.String(),
		"len":    rec.Length,
		"items":  items,
	}
	if mode == ModeJSONVerbose {
		obj["crc"] = rec.CRC
		obj["fspec"] = strings.ToUpper(hex.EncodeToString(rec.FSPEC))
	}
	return obj
}

func (r *Renderer) itemValue(cat *schema.Category, item *asterix.DataItem, mode Mode) any {
	val := r.fieldValue(item.Value, mode)
	if mode != ModeJSONVerbose {
		return val
	}
	name := ""
	if cat != nil {
		if field, err := cat.Field(item.FieldID); err == nil {
			name = field.Name
		}
	}
	return map[string]any{"name": name, "value": val}
}

func (r *Renderer) fieldValue(v asterix.FieldValue, mode Mode) any {
	switch v.Kind {
	case schema.FormatFixed:
		return bitsObject(v.Bits, mode)

	case schema.FormatVariable, schema.FormatRepetitive:
		if v.Kind == schema.FormatVariable {
			// A variable item reads as one logical set of sub-fields
			// spread over its octet chain.
			merged := make(map[string]any)
			for _, part := range v.Parts {
				for k, val := range bitsObject(part.Bits, mode) {
					merged[k] = val
				}
			}
			return merged
		}
		list := make([]any, 0, len(v.Parts))
		for _, part := range v.Parts {
			list = append(list, bitsObject(part.Bits, mode))
		}
		return list

	case schema.FormatExplicit:
		return map[string]any{"raw": strings.ToUpper(hex.EncodeToString(v.Raw))}

	case schema.FormatCompound:
		sub := make(map[string]any, len(v.Parts))
		for _, part := range v.Parts {
			sub[part.Name] = r.fieldValue(part, mode)
		}
		return sub

	case schema.FormatBDS:
		obj := map[string]any{"register": fmt.Sprintf("%02X", v.Register)}
		if v.Raw != nil {
			obj["raw"] = strings.ToUpper(hex.EncodeToString(v.Raw))
			return obj
		}
		for k, val := range bitsObject(v.Bits, mode) {
			obj[k] = val
		}
		return obj
	}
	return nil
}

func bitsObject(bits []asterix.BitValue, mode Mode) map[string]any {
	out := make(map[string]any, len(bits))
	for _, b := range bits {
		if b.FX && mode != ModeJSONVerbose {
			continue
		}
		key := b.Short
		if key == "" {
			key = b.Name
		}
		if key == "" {
			continue
		}
		out[key] = bitJSON(b, mode)
	}
	return out
}

func bitJSON(b asterix.BitValue, mode Mode) any {
	scalar := bitScalar(b)
	if mode == ModeJSON {
		return scalar
	}
	if mode == ModeJSONHuman {
		if b.Meaning == "" && b.Unit == "" {
			return scalar
		}
		obj := map[string]any{"v": scalar}
		if b.Unit != "" {
			obj["unit"] = b.Unit
		}
		if b.Meaning != "" {
			obj["meaning"] = b.Meaning
		}
		return obj
	}
	obj := map[string]any{"v": scalar, "raw": b.Raw}
	if b.Name != "" {
		obj["name"] = b.Name
	}
	if b.Unit != "" {
		obj["unit"] = b.Unit
	}
	if b.Meaning != "" {
		obj["meaning"] = b.Meaning
	}
	return obj
}

func bitScalar(b asterix.BitValue) any {
	if b.IsText {
		return b.Str
	}
	return b.Value
}

// RecordLine renders a record as a single line of short name/value pairs.
func (r *Renderer) RecordLine(rec *asterix.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CAT%03d %s", rec.Category, rec.Status)
	for _, item := range rec.Items {
		fmt.Fprintf(&sb, " I%s[%s]", item.FieldID, r.inlineValue(item.Value))
	}
	return sb.String()
}

func (r *Renderer) inlineValue(v asterix.FieldValue) string {
	switch v.Kind {
	case schema.FormatFixed:
		return inlineBits(v.Bits)
	case schema.FormatVariable:
		parts := make([]string, 0, len(v.Parts))
		for _, p := range v.Parts {
			if s := inlineBits(p.Bits); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case schema.FormatRepetitive:
		parts := make([]string, 0, len(v.Parts))
		for _, p := range v.Parts {
			parts = append(parts, "("+inlineBits(p.Bits)+")")
		}
		return strings.Join(parts, " ")
	case schema.FormatExplicit:
		return "raw=" + strings.ToUpper(hex.EncodeToString(v.Raw))
	case schema.FormatCompound:
		parts := make([]string, 0, len(v.Parts))
		for _, p := range v.Parts {
			parts = append(parts, p.Name+"{"+r.inlineValue(p)+"}")
		}
		return strings.Join(parts, " ")
	case schema.FormatBDS:
		if v.Raw != nil {
			return fmt.Sprintf("BDS%02X raw=%s", v.Register, strings.ToUpper(hex.EncodeToString(v.Raw)))
		}
		return fmt.Sprintf("BDS%02X %s", v.Register, inlineBits(v.Bits))
	}
	return ""
}

func inlineBits(bits []asterix.BitValue) string {
	parts := make([]string, 0, len(bits))
	for _, b := range bits {
		if b.FX {
			continue
		}
		name := b.Short
		if name == "" {
			name = b.Name
		}
		switch {
		case b.IsText:
			parts = append(parts, fmt.Sprintf("%s=%q", name, b.Str))
		case b.Meaning != "":
			parts = append(parts, fmt.Sprintf("%s=%s", name, b.Meaning))
		default:
			parts = append(parts, fmt.Sprintf("%s=%g", name, b.Value))
		}
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) writeRecordText(w io.Writer, rec *asterix.Record) error {
	cat, _ := r.reg.Category(rec.Category)
	catName := ""
	if cat != nil {
		catName = " " + cat.Name
	}
	if _, err := fmt.Fprintf(w, "Record CAT%03d%s (%s, %d bytes)\n",
		rec.Category, catName, rec.Status, rec.Length); err != nil {
		return err
	}
	for _, item := range rec.Items {
		name := ""
		if cat != nil {
			if field, err := cat.Field(item.FieldID); err == nil {
				name = " " + field.Name
			}
		}
		if _, err := fmt.Fprintf(w, "  I%s%s\n", item.FieldID, name); err != nil {
			return err
		}
		if err := writeValueText(w, item.Value, "    "); err != nil {
			return err
		}
	}
	return nil
}

func writeValueText(w io.Writer, v asterix.FieldValue, indent string) error {
	switch v.Kind {
	case schema.FormatFixed:
		return writeBitsText(w, v.Bits, indent)
	case schema.FormatVariable:
		for _, p := range v.Parts {
			if err := writeBitsText(w, p.Bits, indent); err != nil {
				return err
			}
		}
	case schema.FormatRepetitive:
		for i, p := range v.Parts {
			if _, err := fmt.Fprintf(w, "%s[%d]\n", indent, i+1); err != nil {
				return err
			}
			if err := writeBitsText(w, p.Bits, indent+"  "); err != nil {
				return err
			}
		}
	case schema.FormatExplicit:
		_, err := fmt.Fprintf(w, "%sraw: %s\n", indent, strings.ToUpper(hex.EncodeToString(v.Raw)))
		return err
	case schema.FormatCompound:
		for _, p := range v.Parts {
			if _, err := fmt.Fprintf(w, "%s%s\n", indent, p.Name); err != nil {
				return err
			}
			if err := writeValueText(w, p, indent+"  "); err != nil {
				return err
			}
		}
	case schema.FormatBDS:
		if v.Raw != nil {
			_, err := fmt.Fprintf(w, "%sBDS %02X raw: %s\n", indent, v.Register,
				strings.ToUpper(hex.EncodeToString(v.Raw)))
			return err
		}
		if _, err := fmt.Fprintf(w, "%sBDS %02X\n", indent, v.Register); err != nil {
			return err
		}
		return writeBitsText(w, v.Bits, indent+"  ")
	}
	return nil
}

func writeBitsText(w io.Writer, bits []asterix.BitValue, indent string) error {
	for _, b := range bits {
		if b.FX {
			continue
		}
		name := b.Short
		if name == "" {
			name = b.Name
		}
		var line string
		switch {
		case b.IsText:
			line = fmt.Sprintf("%s%s: %q", indent, name, b.Str)
		case b.Meaning != "":
			line = fmt.Sprintf("%s%s: %s (%d)", indent, name, b.Meaning, b.Raw)
		default:
			line = fmt.Sprintf("%s%s: %g", indent, name, b.Value)
			if b.Unit != "" {
				line += " " + b.Unit
			}
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
