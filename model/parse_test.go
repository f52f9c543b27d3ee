package model

import (
	"strings"
	"testing"
)

const minimalPDF = `%PDF-1.7
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 400] /Contents 4 0 R >>
endobj
4 0 obj
<< /Length 23 >>
stream
BT /F1 12 Tf (Hi) Tj ET
endstream
endobj
trailer
<< /Root 1 0 R >>
startxref
0
%%EOF
`

func TestOpenMinimalDocument(t *testing.T) {
	doc, err := Open([]byte(minimalPDF))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.CatalogRef != (Ref{Num: 1, Gen: 0}) {
		t.Fatalf("unexpected catalog ref: %v", doc.CatalogRef)
	}
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 || pages[0] != (Ref{Num: 3, Gen: 0}) {
		t.Fatalf("unexpected pages: %v", pages)
	}
	pd, _ := doc.PageDict(pages[0])
	_, _, w, h, ok := doc.MediaBox(pd)
	if !ok || w != 300 || h != 400 {
		t.Fatalf("unexpected media box: %v %v ok=%v", w, h, ok)
	}
	streams := doc.ContentStreams(pd)
	if len(streams) != 1 {
		t.Fatalf("expected 1 content stream, got %d", len(streams))
	}
	if !strings.Contains(string(streams[0].Data), "Tj") {
		t.Fatalf("unexpected stream payload: %q", streams[0].Data)
	}
}

func TestOpenRejectsNonPDF(t *testing.T) {
	_, err := Open([]byte("not a pdf"))
	if err == nil {
		t.Fatalf("expected error for non-PDF input")
	}
}

func TestOpenRecoversWithoutTrailer(t *testing.T) {
	data := strings.Replace(minimalPDF, "trailer\n<< /Root 1 0 R >>\nstartxref\n0\n%%EOF\n", "", 1)
	doc, err := Open([]byte(data))
	if err != nil {
		t.Fatalf("Open without trailer: %v", err)
	}
	if doc.CatalogRef != (Ref{Num: 1, Gen: 0}) {
		t.Fatalf("expected recovered catalog ref, got %v", doc.CatalogRef)
	}
}

func TestStreamWithWrongLengthFallsBackToScan(t *testing.T) {
	data := strings.Replace(minimalPDF, "/Length 23", "/Length 999", 1)
	doc, err := Open([]byte(data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pages, _ := doc.Pages()
	pd, _ := doc.PageDict(pages[0])
	streams := doc.ContentStreams(pd)
	if len(streams) != 1 {
		t.Fatalf("expected 1 content stream despite bad /Length, got %d", len(streams))
	}
	if !strings.Contains(string(streams[0].Data), "Tj") {
		t.Fatalf("unexpected recovered stream payload: %q", streams[0].Data)
	}
}

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("Z", Int(1))
	d.Set("A", Int(2))
	d.Set("M", Int(3))
	got := d.Keys()
	want := []string{"Z", "A", "M"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("keys out of order: got %v, want %v", got, want)
		}
	}
	d.Delete("A")
	got = d.Keys()
	want = []string{"Z", "M"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("keys after delete out of order: got %v, want %v", got, want)
		}
	}
}
