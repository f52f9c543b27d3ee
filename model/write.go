package model

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// Write serializes doc back to PDF bytes: a flat object table followed by
// a fresh xref table and trailer. This writer always emits a classic
// xref table (never an xref stream), since incremental updates and
// linearization are out of scope for a tool that rewrites structure
// metadata rather than appends to it.
func Write(doc *Document) ([]byte, error) {
	refs := make([]Ref, 0, len(doc.Objects))
	for ref := range doc.Objects {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})

	var buf bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	buf.WriteString("%PDF-" + version + "\n%\xE2\xE3\xCF\xD3\n")

	maxObjNum := 0
	offsets := make(map[int]int64, len(refs))
	for _, ref := range refs {
		if ref.Num > maxObjNum {
			maxObjNum = ref.Num
		}
		offsets[ref.Num] = int64(buf.Len())
		if err := writeObject(&buf, ref, doc.Objects[ref]); err != nil {
			return nil, err
		}
	}

	xrefOffset := int64(buf.Len())
	size := maxObjNum + 1
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= maxObjNum; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := doc.Trailer
	if trailer == nil {
		trailer = NewDict()
	}
	trailer.Set("Size", Int(int64(size)))
	trailer.Set("Root", doc.CatalogRef)
	buf.WriteString("trailer\n")
	writeObjectValue(&buf, trailer)
	buf.WriteString("\nstartxref\n")
	fmt.Fprintf(&buf, "%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, ref Ref, obj Object) error {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	writeObjectValue(buf, obj)
	buf.WriteString("\nendobj\n")
	return nil
}

func writeObjectValue(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case nil:
		buf.WriteString("null")
	case Null:
		buf.WriteString("null")
	case Boolean:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if v.IsInt {
			fmt.Fprintf(buf, "%d", v.Int)
		} else {
			fmt.Fprintf(buf, "%g", v.Float)
		}
	case Name:
		buf.WriteString("/")
		buf.WriteString(escapeName(v.Val))
	case String:
		writeString(buf, v)
	case Ref:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	case *Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObjectValue(buf, item)
		}
		buf.WriteByte(']')
	case *Dict:
		writeDictValue(buf, v)
	case *Stream:
		writeDictValue(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func writeDictValue(buf *bytes.Buffer, d *Dict) {
	buf.WriteString("<<")
	for _, key := range d.Keys() {
		v, _ := d.Get(key)
		buf.WriteString("/")
		buf.WriteString(escapeName(key))
		buf.WriteByte(' ')
		writeObjectValue(buf, v)
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
}

// escapeName applies the #xx hex-escaping PDF names require for
// whitespace, delimiters, and the '#' character itself.
func escapeName(s string) string {
	var out bytes.Buffer
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isWhitespace(b) || isDelim(b) || b == '#' || b < 0x21 || b > 0x7e {
			fmt.Fprintf(&out, "#%02X", b)
			continue
		}
		out.WriteByte(b)
	}
	return out.String()
}

func writeString(buf *bytes.Buffer, s String) {
	if s.Hex {
		buf.WriteByte('<')
		buf.WriteString(hex.EncodeToString(s.Bytes))
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, ch := range s.Bytes {
		switch ch {
		case '\\', '(', ')':
			buf.WriteByte('\\')
			buf.WriteByte(ch)
		case '\n':
			buf.WriteString("\\n")
		case '\r':
			buf.WriteString("\\r")
		case '\t':
			buf.WriteString("\\t")
		default:
			buf.WriteByte(ch)
		}
	}
	buf.WriteByte(')')
}
