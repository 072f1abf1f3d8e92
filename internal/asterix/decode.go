package asterix

import (
	"encoding/binary"
	"hash/crc32"

	"example.com/astgate/internal/common"
	"example.com/astgate/internal/schema"
)

const blockHeaderSize = 3

// Decoder turns raw ASTERIX buffers into Messages using an already-loaded
// registry. The registry is read-only; a Decoder may be shared between
// goroutines as long as loading and decoding never interleave.
type Decoder struct {
	reg     *schema.Registry
	metrics *common.Metrics
}

func NewDecoder(reg *schema.Registry) *Decoder {
	return &Decoder{reg: reg}
}

// SetMetrics attaches a metrics recorder to the decoder.
func (d *Decoder) SetMetrics(m *common.Metrics) {
	d.metrics = m
}

// Decode parses every data block in buf. Damage is contained: truncated
// records and blocks are returned with their status set, unknown categories
// are stepped over, and only an unreadable block header stops the walk.
func (d *Decoder) Decode(buf []byte, timestamp float64) *Message {
	msg, _ := d.DecodeNext(buf, 0, 0, timestamp)
	return msg
}

// DecodeNext is the resumable form of Decode: it starts at offset, stops
// after the block that brings the record count to maxRecords (0 means
// unbounded), and reports the bytes consumed so the caller can loop by
// advancing the offset. Consumption is whole-block; bytes that do not form
// a complete header are left for the next call.
func (d *Decoder) DecodeNext(buf []byte, offset, maxRecords int, timestamp float64) (*Message, int) {
	msg := &Message{Timestamp: timestamp}
	if offset < 0 {
		offset = 0
	}
	pos := offset
	records := 0
	for pos < len(buf) {
		remaining := len(buf) - pos
		if remaining < blockHeaderSize {
			break
		}
		catID := int(buf[pos])
		declared := int(binary.BigEndian.Uint16(buf[pos+1 : pos+3]))
		if declared < blockHeaderSize {
			common.Logf("cat %d block at offset %d declares length %d, aborting message", catID, pos, declared)
			break
		}
		segment := declared
		truncated := false
		if segment > remaining {
			segment = remaining
			truncated = true
		}

		cat, ok := d.reg.Category(catID)
		if !ok {
			common.Logf("cat %d block at offset %d: %v, skipping %d bytes", catID, pos, ErrUnknownCategory, segment)
			msg.Blocks = append(msg.Blocks, &Block{
				Category:  catID,
				Length:    segment,
				Timestamp: timestamp,
				Status:    StatusSkipped,
			})
			if d.metrics != nil {
				d.metrics.IncUnknownCategory()
				d.metrics.AddBytes(int64(segment))
			}
			pos += segment
			continue
		}

		block := d.decodeBlock(cat, buf[pos+blockHeaderSize:pos+segment], segment, timestamp, truncated)
		pos += segment
		msg.Blocks = append(msg.Blocks, block)
		records += len(block.Records)
		if d.metrics != nil {
			d.metrics.AddBlock(block.Category, block.Status == StatusTruncated)
			d.metrics.AddBytes(int64(segment))
			for _, rec := range block.Records {
				d.metrics.AddRecord(rec.Status == StatusTruncated)
			}
		}
		if maxRecords > 0 && records >= maxRecords {
			break
		}
	}
	return msg, pos - offset
}

// decodeBlock runs the record machine over the block body until it is
// exhausted. Bytes that cannot start another record are kept as trailing
// diagnostics.
func (d *Decoder) decodeBlock(cat *schema.Category, body []byte, length int, timestamp float64, truncated bool) *Block {
	block := &Block{
		Category:  cat.ID,
		Length:    length,
		Timestamp: timestamp,
		Status:    StatusComplete,
	}
	if truncated {
		block.Status = StatusTruncated
	}
	offset := 0
	for offset < len(body) {
		rec := d.decodeRecord(cat, body[offset:], timestamp)
		if rec.Length == 0 {
			block.Trailing = append([]byte(nil), body[offset:]...)
			block.Status = StatusTruncated
			break
		}
		block.Records = append(block.Records, rec)
		offset += rec.Length
		if rec.Status == StatusTruncated {
			block.Status = StatusTruncated
			break
		}
	}
	return block
}

// decodeRecord is the per-record state machine: select the profile, walk
// the FSPEC, run length then decode for every present FRN. A length failure
// truncates the record but keeps the items decoded before it.
func (d *Decoder) decodeRecord(cat *schema.Category, buf []byte, timestamp float64) *Record {
	rec := &Record{
		Category:  cat.ID,
		Timestamp: timestamp,
		Status:    StatusComplete,
	}

	profile, err := cat.SelectProfile(buf)
	if err != nil {
		common.Logf("cat %d record: %v", cat.ID, err)
		rec.Status = StatusTruncated
		rec.Length = len(buf)
		return rec
	}

	fspecLen := 0
	for {
		if fspecLen >= len(buf) {
			rec.FSPEC = append([]byte(nil), buf...)
			rec.Status = StatusTruncated
			rec.Length = len(buf)
			return rec
		}
		oct := buf[fspecLen]
		fspecLen++
		if oct&0x01 == 0 {
			break
		}
	}
	rec.FSPEC = append([]byte(nil), buf[:fspecLen]...)

	cursor := fspecLen
	for octIdx, oct := range rec.FSPEC {
		for bit := 0; bit < 7; bit++ {
			if oct&(0x80>>uint(bit)) == 0 {
				continue
			}
			frn := octIdx*7 + bit + 1
			id, ok := profile.FieldID(frn)
			if !ok || id == "" {
				common.Logf("cat %d profile %q: FRN %d set but unmapped", cat.ID, profile.Name, frn)
				rec.Status = StatusTruncated
				rec.Length = len(buf)
				return rec
			}
			field, err := cat.Field(id)
			if err != nil {
				common.Logf("cat %d FRN %d: %v", cat.ID, frn, err)
				rec.Status = StatusTruncated
				rec.Length = len(buf)
				return rec
			}
			n, err := itemLength(&field.Format, buf[cursor:])
			if err != nil {
				common.Logf("cat %d item %s at byte %d: %v", cat.ID, id, cursor, err)
				rec.Status = StatusTruncated
				rec.Length = len(buf)
				return rec
			}
			rec.Items = append(rec.Items, &DataItem{
				FieldID: id,
				Value:   decodeItem(&field.Format, buf[cursor:cursor+n], n),
			})
			cursor += n
		}
	}

	rec.Length = cursor
	rec.CRC = crc32.ChecksumIEEE(buf[:cursor])
	return rec
}
