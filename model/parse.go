package model

import (
	"bytes"
	"fmt"

	"github.com/a11ytag/pdftag/pdferr"
)

// Open reads a PDF document from data. Rather than trusting the xref
// table (which is frequently stale or absent in the untagged, hand-edited
// PDFs this module remediates), the reader scans the whole buffer for
// "N G obj ... endobj" headers directly. This makes every Open
// effectively a recovery parse, which is the robust choice for a tool
// whose job is to fix already-damaged accessibility structure.
func Open(data []byte) (*Document, error) {
	if len(data) < 8 || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, pdferr.ParseFailure{Message: "not a PDF file (missing %PDF- header)", Offset: -1}
	}
	version := "1.7"
	if nl := bytes.IndexAny(data[:min(32, len(data))], "\r\n"); nl > 5 {
		version = string(bytes.TrimSpace(data[5:nl]))
	}

	doc := &Document{Objects: make(map[Ref]Object), Version: version}

	l := newLexer(data)
	var trailer *Dict
	for {
		t, ok := l.next()
		if !ok {
			break
		}
		switch {
		case t.kind == tokKeyword && t.str == "trailer":
			d, err := parseValue(l)
			if err == nil {
				if dict, ok := d.(*Dict); ok {
					trailer = dict
				}
			}
		case t.kind == tokNumber && t.num.IsInt:
			obj, objEnd := tryParseIndirectObject(l, t)
			if obj != nil {
				doc.Objects[objEnd] = obj
			}
		default:
			// ignore xref tables, startxref offsets, and any other noise
		}
	}

	if trailer == nil {
		trailer = NewDict()
		for ref, obj := range doc.Objects {
			if dict, ok := obj.(*Dict); ok {
				if typ, ok := dict.GetName("Type"); ok && typ.Val == "Catalog" {
					trailer.Set("Root", ref)
					break
				}
			}
		}
	}
	doc.Trailer = trailer
	if rootRef, ok := trailer.GetRef("Root"); ok {
		doc.CatalogRef = rootRef
	}
	if _, ok := trailer.Get("Encrypt"); ok {
		doc.Encrypted = true
	}
	if doc.CatalogRef == (Ref{}) {
		return nil, pdferr.ParseFailure{Message: "no document catalog found", Offset: -1}
	}
	return doc, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// tryParseIndirectObject attempts to parse "<num> <gen> obj ... endobj"
// starting from an already-consumed leading number token. It returns nil,
// zero-Ref if the lookahead does not match (the lexer position is left
// just past whatever was consumed).
func tryParseIndirectObject(l *lexer, numTok tok) (Object, Ref) {
	genTok, ok := l.next()
	if !ok || genTok.kind != tokNumber || !genTok.num.IsInt {
		if ok {
			l.unread(genTok)
		}
		return nil, Ref{}
	}
	kwTok, ok := l.next()
	if !ok || kwTok.kind != tokKeyword || kwTok.str != "obj" {
		if ok {
			l.unread(kwTok)
		}
		l.unread(genTok)
		return nil, Ref{}
	}

	ref := Ref{Num: int(numTok.num.Int), Gen: int(genTok.num.Int)}
	obj, err := parseValue(l)
	if err != nil {
		return nil, Ref{}
	}

	if dict, ok := obj.(*Dict); ok {
		if consumedStream, data, ok := tryConsumeStream(l, dict); ok {
			obj = consumedStream
			_ = data
		}
	}

	// Consume optional "endobj".
	if t, ok := l.next(); ok {
		if t.kind != tokKeyword || t.str != "endobj" {
			l.unread(t)
		}
	}
	return obj, ref
}

// tryConsumeStream checks whether the bytes immediately following the
// parsed dictionary form a stream body, and if so reads it using /Length
// when it is a direct integer, falling back to scanning for the literal
// "endstream" keyword (robust against indirect or wrong /Length values,
// which are common in hand-damaged PDFs).
func tryConsumeStream(l *lexer, dict *Dict) (*Stream, []byte, bool) {
	save := l.pos
	saveBack := l.back
	t, ok := l.next()
	if !ok || t.kind != tokKeyword || t.str != "stream" {
		if ok {
			l.unread(t)
		}
		l.pos = save
		l.back = saveBack
		return nil, nil, false
	}
	// Per PDF spec, "stream" is followed by CRLF or LF (not bare CR).
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
	start := l.pos
	var length int
	if n, ok := dict.GetNumber("Length"); ok && n.IsInt {
		length = int(n.Int)
	} else {
		length = -1
	}

	var payload []byte
	if length >= 0 && start+length <= len(l.data) {
		payload = l.data[start : start+length]
		l.pos = start + length
		// Verify "endstream" follows (allowing whitespace); if not, the
		// /Length lied, so fall back to scanning.
		probe := newLexer(l.data)
		probe.pos = l.pos
		pt, pok := probe.next()
		if !pok || pt.kind != tokKeyword || pt.str != "endstream" {
			payload = nil
		} else {
			l.pos = probe.pos
		}
	}
	if payload == nil {
		idx := bytes.Index(l.data[start:], []byte("endstream"))
		if idx < 0 {
			l.pos = start
			return nil, nil, false
		}
		end := start + idx
		// Trim a single trailing EOL before "endstream".
		trimmed := end
		if trimmed > start && l.data[trimmed-1] == '\n' {
			trimmed--
			if trimmed > start && l.data[trimmed-1] == '\r' {
				trimmed--
			}
		}
		payload = l.data[start:trimmed]
		l.pos = end + len("endstream")
	}
	return NewStream(dict, payload), payload, true
}

// parseValue parses one PDF object value from l, including indirect
// references ("N G R"), which require two tokens of lookahead past a
// leading integer.
func parseValue(l *lexer) (Object, error) {
	t, ok := l.next()
	if !ok {
		return nil, fmt.Errorf("model: unexpected end of input")
	}
	switch t.kind {
	case tokName:
		return Name{Val: t.str}, nil
	case tokBool:
		return Boolean(t.str == "true"), nil
	case tokNull:
		return Null{}, nil
	case tokString:
		return String{Bytes: t.bs, Hex: t.hex}, nil
	case tokArrayOpen:
		return parseArrayBody(l)
	case tokDictOpen:
		return parseDictBody(l)
	case tokNumber:
		return parseNumberOrRef(l, t)
	default:
		return nil, fmt.Errorf("model: unexpected token parsing value: %q", t.str)
	}
}

func parseNumberOrRef(l *lexer, first tok) (Object, error) {
	if !first.num.IsInt {
		return first.num, nil
	}
	second, ok := l.next()
	if !ok {
		return first.num, nil
	}
	if second.kind != tokNumber || !second.num.IsInt {
		l.unread(second)
		return first.num, nil
	}
	third, ok := l.next()
	if !ok {
		l.unread(second)
		return first.num, nil
	}
	if third.kind == tokKeyword && third.str == "R" {
		return Ref{Num: int(first.num.Int), Gen: int(second.num.Int)}, nil
	}
	l.unread(third)
	l.unread(second)
	return first.num, nil
}

func parseArrayBody(l *lexer) (Object, error) {
	arr := NewArray()
	for {
		t, ok := l.next()
		if !ok {
			return nil, fmt.Errorf("model: unterminated array")
		}
		if t.kind == tokArrayClose {
			return arr, nil
		}
		l.unread(t)
		item, err := parseValue(l)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDictBody(l *lexer) (Object, error) {
	d := NewDict()
	for {
		t, ok := l.next()
		if !ok {
			return nil, fmt.Errorf("model: unterminated dictionary")
		}
		if t.kind == tokDictClose {
			return d, nil
		}
		if t.kind != tokName {
			return nil, fmt.Errorf("model: expected name key in dictionary, got %q", t.str)
		}
		key := t.str
		val, err := parseValue(l)
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
	}
}
