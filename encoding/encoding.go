// Package encoding maps PDF simple-font encoding names (WinAnsiEncoding,
// MacRomanEncoding, and friends) to single-byte decoders, for recovering
// Unicode text from codes when a font carries no ToUnicode CMap.
package encoding

import (
	"golang.org/x/text/encoding/charmap"
)

// Table decodes single-byte character codes to Unicode runes.
type Table interface {
	Decode(code byte) (rune, bool)
}

type charmapTable struct{ cm *charmap.Charmap }

func (t charmapTable) Decode(code byte) (rune, bool) {
	r := t.cm.DecodeByte(code)
	if r == '�' {
		return 0, false
	}
	return r, true
}

// identityTable decodes a code to its Latin-1 codepoint, used for
// encodings x/text does not carry a dedicated charmap for (Symbol,
// ZapfDingbats, StandardEncoding): PDF readers fall back to the font's
// built-in glyph-name mapping for those, which this module does not
// reproduce; the identity mapping is a best-effort placeholder.
type identityTable struct{}

func (identityTable) Decode(code byte) (rune, bool) { return rune(code), true }

// Lookup resolves a PDF /Encoding name to its decoding Table. Unknown or
// PDF-specific names (Symbol, ZapfDingbats, StandardEncoding,
// MacExpertEncoding) fall back to an identity table.
func Lookup(name string) Table {
	switch name {
	case "WinAnsiEncoding":
		return charmapTable{charmap.Windows1252}
	case "MacRomanEncoding":
		return charmapTable{charmap.Macintosh}
	default:
		return identityTable{}
	}
}

// DecodeString decodes every byte of s through table, skipping codes the
// table cannot map.
func DecodeString(s []byte, table Table) string {
	runes := make([]rune, 0, len(s))
	for _, b := range s {
		if r, ok := table.Decode(b); ok {
			runes = append(runes, r)
		}
	}
	return string(runes)
}
