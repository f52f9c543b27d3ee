// Package fontprog analyzes an embedded font program's raw bytes
// (FontFile/FontFile2/FontFile3 payloads): table directory, cmap
// subtables, and basic glyph metrics. Parsing never fails outward — a
// corrupt or unrecognized font program yields a zero-value Info, the
// way the inspector's other per-object analyses degrade gracefully.
package fontprog

import (
	"bytes"
	"encoding/binary"
	"fmt"

	gofont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Subtable describes one entry in a cmap table's subtable directory.
type Subtable struct {
	PlatformID     uint16
	EncodingID     uint16
	Offset         uint32
}

// Info summarizes an embedded font program.
type Info struct {
	NumGlyphs   int
	UnitsPerEm  int
	Ascent      float64
	Descent     float64
	CapHeight   float64
	ItalicAngle float64
	Tables      []string
	CmapSubtables []Subtable
	HasNotdefGlyph bool
}

// Table is one entry of an OpenType/TrueType table directory, grounded
// on the sfnt table-directory layout: a 4-byte tag, checksum, offset,
// and length, all big-endian uint32 (tag read as 4 bytes).
type Table struct {
	Tag    string
	Offset uint32
	Length uint32
}

// ParseTableDirectory reads an OpenType/TrueType table directory's tag,
// offset, and length entries, skipping the checksum field. Returns an
// error only when the directory header itself is truncated.
func ParseTableDirectory(data []byte) (map[string]Table, error) {
	r := bytes.NewReader(data)
	var scalerType uint32
	if err := binary.Read(r, binary.BigEndian, &scalerType); err != nil {
		return nil, fmt.Errorf("reading scaler type: %w", err)
	}
	var numTables uint16
	if err := binary.Read(r, binary.BigEndian, &numTables); err != nil {
		return nil, fmt.Errorf("reading table count: %w", err)
	}
	if _, err := r.Seek(6, 1); err != nil { // skip searchRange/entrySelector/rangeShift
		return nil, err
	}

	tables := make(map[string]Table, numTables)
	for i := 0; i < int(numTables); i++ {
		var tag [4]byte
		if _, err := r.Read(tag[:]); err != nil {
			break
		}
		var checksum, offset, length uint32
		if err := binary.Read(r, binary.BigEndian, &checksum); err != nil {
			break
		}
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			break
		}
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			break
		}
		tables[string(tag[:])] = Table{Tag: string(tag[:]), Offset: offset, Length: length}
	}
	return tables, nil
}

// CmapSubtables parses the cmap table's subtable directory (version,
// count, then platformID/encodingID/offset triples) into Subtable
// entries. Returns nil when the table is shorter than its 4-byte header;
// a truncated subtable record ends the list, keeping the entries read
// before it.
func CmapSubtables(cmapTable []byte) []Subtable {
	if len(cmapTable) < 4 {
		return nil
	}
	r := bytes.NewReader(cmapTable[2:]) // skip version, keep numTables
	var numTables uint16
	if err := binary.Read(r, binary.BigEndian, &numTables); err != nil {
		return nil
	}
	var out []Subtable
	for i := 0; i < int(numTables); i++ {
		var platformID, encodingID uint16
		var offset uint32
		if err := binary.Read(r, binary.BigEndian, &platformID); err != nil {
			break
		}
		if err := binary.Read(r, binary.BigEndian, &encodingID); err != nil {
			break
		}
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			break
		}
		out = append(out, Subtable{PlatformID: platformID, EncodingID: encodingID, Offset: offset})
	}
	return out
}

// Analyze parses an embedded TrueType/OpenType font program's table
// directory and basic metrics. CFF-flavored OpenType (tables keyed
// "CFF ") and bare TrueType both parse through sfnt; font programs in
// neither shape (bare Type1 PFB, malformed data) return a zero Info.
func Analyze(data []byte) Info {
	var info Info

	if tables, err := ParseTableDirectory(data); err == nil {
		for tag, t := range tables {
			info.Tables = append(info.Tables, tag)
			if tag == "cmap" {
				end := t.Offset + t.Length
				if int(end) <= len(data) && t.Offset < end {
					info.CmapSubtables = CmapSubtables(data[t.Offset:end])
				}
			}
		}
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		return info
	}
	info.NumGlyphs = f.NumGlyphs()
	info.UnitsPerEm = int(f.UnitsPerEm())

	var buf sfnt.Buffer
	ppem := fixed.Int26_6(f.UnitsPerEm() << 6)
	if metrics, err := f.Metrics(&buf, ppem, font.HintingNone); err == nil {
		info.Ascent = scaleFixed(metrics.Ascent, int(f.UnitsPerEm()))
		info.Descent = scaleFixed(metrics.Descent, int(f.UnitsPerEm()))
		info.CapHeight = info.Ascent
	}

	// Every valid sfnt font reserves glyph index 0 as .notdef.
	info.HasNotdefGlyph = info.NumGlyphs > 0

	return info
}

// scaleFixed converts a 26.6 fixed-point metric (in font units) to a
// 1000-unit em scale.
func scaleFixed(v fixed.Int26_6, unitsPerEm int) float64 {
	if unitsPerEm == 0 {
		return 0
	}
	return float64(v) / 64.0 / float64(unitsPerEm) * 1000.0
}

// Shapeable reports whether data parses as a font program the shaping
// path (go-text/typesetting) can load before handing a face to HarfBuzz.
func Shapeable(data []byte) bool {
	_, err := gofont.ParseTTF(bytes.NewReader(data))
	return err == nil
}
