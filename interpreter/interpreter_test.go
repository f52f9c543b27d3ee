package interpreter

import (
	"context"
	"strings"
	"testing"

	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/instructions"
	"github.com/a11ytag/pdftag/model"
)

func newOnePagerDoc(t *testing.T, content string) *model.Document {
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
	return doc
}

func TestExecuteRunsMetadataStructureAndTagging(t *testing.T) {
	doc := newOnePagerDoc(t, "BT\n1 0 0 1 72 700 Tm\n/F1 12 Tf\n(Chapter One) Tj\nET\n")

	set := instructions.Set{
		Metadata: &instructions.Metadata{
			Language:        "en-US",
			Title:           "My Document",
			DisplayDocTitle: true,
			MarkInfo:        true,
			PDFUAIdentifier: 1,
			TabOrder:        instructions.TabStructure,
		},
		Structure: &instructions.Structure{
			Root: "Document",
			Children: []instructions.StructureNode{
				{ID: "h1", Role: "H1"},
			},
		},
		ContentTagging: []instructions.ContentTagging{
			{Node: "h1", Page: 1, BBox: coords.Rect{X: 70, Y: 698, Width: 60, Height: 16}},
		},
		Bookmarks: instructions.Bookmarks{GenerateFromHeadings: true},
	}

	in := New(doc)
	if err := in.Execute(context.Background(), set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog, _ := doc.Catalog()
	lang, _ := catalog.GetString("Lang")
	if string(lang.Bytes) != "en-US" {
		t.Fatalf("expected Lang=en-US, got %q", lang.Bytes)
	}

	viewerPrefs, ok := doc.DictAt(catalog, "ViewerPreferences")
	if !ok {
		t.Fatalf("expected ViewerPreferences dict")
	}
	if v, _ := viewerPrefs.Get("DisplayDocTitle"); v != model.Boolean(true) {
		t.Fatalf("expected DisplayDocTitle=true, got %+v", v)
	}

	markInfo, ok := doc.DictAt(catalog, "MarkInfo")
	if !ok {
		t.Fatalf("expected MarkInfo dict")
	}
	if v, _ := markInfo.Get("Marked"); v != model.Boolean(true) {
		t.Fatalf("expected Marked=true, got %+v", v)
	}

	metaRef, ok := catalog.GetRef("Metadata")
	if !ok {
		t.Fatalf("expected catalog /Metadata")
	}
	xmp, ok := doc.ResolveStream(metaRef)
	if !ok {
		t.Fatalf("expected metadata stream")
	}
	if !strings.Contains(string(xmp.Data), "My Document") {
		t.Fatalf("expected XMP to contain title, got %s", xmp.Data)
	}
	if !strings.Contains(string(xmp.Data), "<pdfuaid:part>1</pdfuaid:part>") {
		t.Fatalf("expected XMP to contain pdfuaid:part, got %s", xmp.Data)
	}

	pages, _ := doc.Pages()
	pageDict, _ := doc.PageDict(pages[0])
	tabs, _ := pageDict.GetName("Tabs")
	if tabs.Val != "S" {
		t.Fatalf("expected Tabs=S, got %q", tabs.Val)
	}

	outlinesRef, ok := catalog.GetRef("Outlines")
	if !ok {
		t.Fatalf("expected catalog /Outlines")
	}
	outlines, _ := doc.ResolveDict(outlinesRef)
	firstRef, ok := outlines.GetRef("First")
	if !ok {
		t.Fatalf("expected /Outlines/First")
	}
	item, _ := doc.ResolveDict(firstRef)
	title, _ := item.GetString("Title")
	if string(title.Bytes) != "Chapter One" {
		t.Fatalf("expected bookmark title 'Chapter One', got %q", title.Bytes)
	}

	info := in.infoDict()
	processor, _ := info.GetString("Processor")
	if !strings.HasPrefix(string(processor.Bytes), "pdftag") {
		t.Fatalf("expected Processor stamp, got %q", processor.Bytes)
	}
}

func TestExecuteCancelledContextAbortsBeforeNextStage(t *testing.T) {
	doc := newOnePagerDoc(t, "BT ET\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := New(doc)
	err := in.Execute(ctx, instructions.Set{})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestExecuteRejectsUnknownFontOperation(t *testing.T) {
	doc := newOnePagerDoc(t, "BT ET\n")
	in := New(doc)
	set := instructions.Set{
		Fonts: []instructions.Font{{Op: instructions.FontOp("bogus"), Page: 1, FontKey: "F1"}},
	}
	if err := in.Execute(context.Background(), set); err == nil {
		t.Fatalf("expected error for unknown font operation")
	}
}
