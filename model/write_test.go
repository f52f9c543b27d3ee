package model

import (
	"bytes"
	"testing"
)

func TestWriteOpenRoundTrip(t *testing.T) {
	doc := NewDocument()
	catalog, ok := doc.Catalog()
	if !ok {
		t.Fatalf("expected catalog")
	}
	pagesRef, _ := catalog.Get("Pages")
	pages, ok := doc.ResolveDict(pagesRef)
	if !ok {
		t.Fatalf("expected pages dict")
	}

	page := NewDict()
	page.Set("Type", NewName("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", NewArray(Int(0), Int(0), Int(612), Int(792)))
	pageRef := doc.Add(page)

	kids, _ := pages.Get("Kids")
	kidsArr := kids.(*Array)
	kidsArr.Append(pageRef)
	pages.Set("Count", Int(1))

	stream := NewFlateStream(nil, []byte("BT /F1 12 Tf (Hi) Tj ET"))
	streamRef := doc.Add(stream)
	page.Set("Contents", streamRef)

	out, err := Write(doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.7")) {
		t.Fatalf("missing PDF header: %q", out[:20])
	}
	if !bytes.Contains(out, []byte("trailer")) {
		t.Fatalf("missing trailer")
	}
	if !bytes.Contains(out, []byte("startxref")) {
		t.Fatalf("missing startxref")
	}

	doc2, err := Open(out)
	if err != nil {
		t.Fatalf("re-open written document: %v", err)
	}
	refs, err := doc2.Pages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 page, got %d", len(refs))
	}
	pd, ok := doc2.PageDict(refs[0])
	if !ok {
		t.Fatalf("expected page dict")
	}
	_, _, w, h, ok := doc2.MediaBox(pd)
	if !ok || w != 612 || h != 792 {
		t.Fatalf("unexpected media box: %v %v ok=%v", w, h, ok)
	}
}

func TestWriteEscapesNamesAndStrings(t *testing.T) {
	doc := NewDocument()
	d := NewDict()
	d.Set("A Name With Space", NewName("has space"))
	d.Set("Note", String{Bytes: []byte("a (b) c\\d")})
	ref := doc.Add(d)
	doc.Trailer.Set("Extra", ref)

	out, err := Write(doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Contains(out, []byte("#20")) {
		t.Fatalf("expected hex-escaped space in name, got %q", out)
	}
	if !bytes.Contains(out, []byte(`\(b\)`)) {
		t.Fatalf("expected escaped parens in string, got %q", out)
	}
}
