package artifact

import (
	"strings"
	"testing"

	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/model"
)

func newOnePagerDoc(t *testing.T, content string) (*model.Document, model.Ref) {
	t.Helper()
	doc := model.NewDocument()
	catalog, _ := doc.Catalog()
	pagesRef, _ := catalog.Get("Pages")
	pagesDict, _ := doc.ResolveDict(pagesRef)

	page := model.NewDict()
	page.Set("Type", model.NewName("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", model.NewArray(model.Int(0), model.Int(0), model.Int(612), model.Int(792)))
	stream := model.NewFlateStream(nil, []byte(content))
	streamRef := doc.Add(stream)
	page.Set("Contents", streamRef)
	pageRef := doc.Add(page)

	kids, _ := pagesDict.GetArray("Kids")
	kids.Append(pageRef)
	pagesDict.Set("Count", model.Int(1))

	return doc, pageRef
}

func TestApplyWrapsMatchedOperatorWithArtifactBracket(t *testing.T) {
	doc, _ := newOnePagerDoc(t, "BT\n1 0 0 1 72 700 Tm\n/F1 12 Tf\n(Header) Tj\nET\n")
	h := New(doc, nil)

	entries := []Entry{{Type: "header", Page: 1, BBox: coords.Rect{X: 60, Y: 695, Width: 100, Height: 20}}}
	if err := h.Apply(entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, _ := doc.PageDict(mustPageRef(doc))
	streams := doc.ContentStreams(page)
	if len(streams) != 1 {
		t.Fatalf("expected exactly 1 content stream, got %d", len(streams))
	}
	out := string(model.DecodeStream(streams[0]))
	if !strings.Contains(out, "/Artifact <</Type /Header>> BDC") {
		t.Fatalf("expected Header artifact bracket, got: %q", out)
	}
	if !strings.Contains(out, "EMC") {
		t.Fatalf("expected a matching EMC, got: %q", out)
	}
}

func TestApplyUnknownTypeDefaultsToLayout(t *testing.T) {
	doc, _ := newOnePagerDoc(t, "BT\n1 0 0 1 72 700 Tm\n/F1 12 Tf\n(X) Tj\nET\n")
	h := New(doc, nil)
	entries := []Entry{{Type: "decorative-swirl", Page: 1, BBox: coords.Rect{X: 60, Y: 695, Width: 100, Height: 20}}}
	if err := h.Apply(entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, _ := doc.PageDict(mustPageRef(doc))
	out := string(model.DecodeStream(doc.ContentStreams(page)[0]))
	if !strings.Contains(out, "/Type /Layout") {
		t.Fatalf("expected unknown type to default to Layout, got: %q", out)
	}
}

func TestApplyOutOfRangePageFails(t *testing.T) {
	doc, _ := newOnePagerDoc(t, "BT\nET\n")
	h := New(doc, nil)
	err := h.Apply([]Entry{{Type: "layout", Page: 5, BBox: coords.Rect{Width: 1, Height: 1}}})
	if err == nil {
		t.Fatalf("expected an error for an out-of-range page")
	}
}

func TestApplyNoMatchIsANoOp(t *testing.T) {
	doc, _ := newOnePagerDoc(t, "BT\n1 0 0 1 72 700 Tm\n/F1 12 Tf\n(X) Tj\nET\n")
	h := New(doc, nil)
	original := string(model.DecodeStream(doc.ContentStreams(mustPageDict(doc))[0]))
	entries := []Entry{{Type: "layout", Page: 1, BBox: coords.Rect{X: 0, Y: 0, Width: 1, Height: 1}}}
	if err := h.Apply(entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := string(model.DecodeStream(doc.ContentStreams(mustPageDict(doc))[0]))
	if original != after {
		t.Fatalf("expected no-op rewrite when bbox matches nothing, got change:\nbefore=%q\nafter=%q", original, after)
	}
}

func mustPageRef(doc *model.Document) model.Ref {
	pages, _ := doc.Pages()
	return pages[0]
}

func mustPageDict(doc *model.Document) *model.Dict {
	d, _ := doc.PageDict(mustPageRef(doc))
	return d
}
