package inspector

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/a11ytag/pdftag/cmap"
	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/instructions"
	"github.com/a11ytag/pdftag/interpreter"
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

func TestInspectUntaggedSinglePage(t *testing.T) {
	doc := newOnePagerDoc(t, "BT ET\n")
	r := Inspect(doc, []byte("irrelevant source bytes"))

	if len(r.FileHash) != 64 {
		t.Fatalf("expected 64-char hex sha256, got %q", r.FileHash)
	}
	if _, err := hex.DecodeString(r.FileHash); err != nil {
		t.Fatalf("file_hash not valid hex: %v", err)
	}
	if r.DocumentInfo.IsTagged {
		t.Fatalf("expected untagged document")
	}
	if r.DocumentInfo.PageCount != 1 {
		t.Fatalf("expected page_count=1, got %d", r.DocumentInfo.PageCount)
	}
	if r.Structure != nil {
		t.Fatalf("expected no structure tree for an untagged document")
	}
}

func TestInspectIsPureAndDeterministic(t *testing.T) {
	doc := newOnePagerDoc(t, "BT ET\n")
	raw := []byte("source bytes")
	r1 := Inspect(doc, raw)
	r2 := Inspect(doc, raw)
	if r1.FileHash != r2.FileHash || r1.DocumentInfo.PageCount != r2.DocumentInfo.PageCount {
		t.Fatalf("expected two Inspect calls on the same document to agree")
	}
	if len(doc.Objects) == 0 {
		t.Fatalf("sanity: document should still have objects")
	}
}

func TestInspectReportsMetadataAndTaggedStructure(t *testing.T) {
	doc := newOnePagerDoc(t, "BT\n1 0 0 1 72 700 Tm\n/F1 12 Tf\n(Chapter One) Tj\nET\n")

	set := instructions.Set{
		Metadata: &instructions.Metadata{
			Language:        "en-US",
			Title:           "My Document",
			DisplayDocTitle: true,
			MarkInfo:        true,
			PDFUAIdentifier: 1,
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
	}
	in := interpreter.New(doc)
	if err := in.Execute(context.Background(), set); err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}

	r := Inspect(doc, []byte("src"))
	if !r.DocumentInfo.IsTagged {
		t.Fatalf("expected is_tagged=true")
	}
	if r.DocumentInfo.Language != "en-US" {
		t.Fatalf("expected language en-US, got %q", r.DocumentInfo.Language)
	}
	if !r.DocumentInfo.MarkInfoMarked {
		t.Fatalf("expected mark_info_marked=true")
	}
	if !r.DocumentInfo.HasStructuralParentTree {
		t.Fatalf("expected has_structural_parent_tree=true")
	}
	if r.XMP == nil {
		t.Fatalf("expected XMP metadata to be present")
	}
	if r.Structure == nil || len(r.Structure.Children) != 1 {
		t.Fatalf("expected one root structure child, got %+v", r.Structure)
	}
	doc1 := r.Structure.Children[0]
	if doc1.Role != "Document" || len(doc1.Children) != 1 {
		t.Fatalf("expected Document with one H1 child, got %+v", doc1)
	}
	h1 := doc1.Children[0]
	if h1.Role != "H1" || h1.FirstMCID == nil || *h1.FirstMCID != 0 {
		t.Fatalf("expected H1 with first_mcid=0, got %+v", h1)
	}
	if h1.Page != 1 {
		t.Fatalf("expected H1 page=1, got %d", h1.Page)
	}
	if len(r.Pages) != 1 || len(r.Pages[0].MCIDs) != 1 || r.Pages[0].MCIDs[0] != 0 {
		t.Fatalf("expected page 1 to reference MCID 0, got %+v", r.Pages)
	}
}

func TestInspectDedupsFontsAcrossPages(t *testing.T) {
	doc := newOnePagerDoc(t, "BT /F1 12 Tf (x) Tj ET\n")
	catalog, _ := doc.Catalog()
	pagesRef, _ := catalog.Get("Pages")
	pagesDict, _ := doc.ResolveDict(pagesRef)

	fontDict := model.NewDict()
	fontDict.Set("Type", model.NewName("Font"))
	fontDict.Set("Subtype", model.NewName("TrueType"))
	fontDict.Set("BaseFont", model.NewName("Helvetica"))
	fontRef := doc.Add(fontDict)

	for i := 0; i < 2; i++ {
		fonts := model.NewDict()
		fonts.Set("F1", fontRef)
		resources := model.NewDict()
		resources.Set("Font", fonts)
		page := model.NewDict()
		page.Set("Type", model.NewName("Page"))
		page.Set("Parent", pagesRef)
		page.Set("Resources", resources)
		pageRef := doc.Add(page)
		kids, _ := pagesDict.GetArray("Kids")
		kids.Append(pageRef)
	}
	pagesDict.Set("Count", model.Int(3))

	r := Inspect(doc, []byte("src"))
	var helv *FontRecord
	for i := range r.Fonts {
		if r.Fonts[i].Name == "Helvetica" {
			helv = &r.Fonts[i]
		}
	}
	if helv == nil {
		t.Fatalf("expected a deduplicated Helvetica font record, got %+v", r.Fonts)
	}
	if len(helv.Pages) != 2 || helv.Pages[0] != 2 || helv.Pages[1] != 3 {
		t.Fatalf("expected pages [2,3], got %+v", helv.Pages)
	}
}

func TestDecodePermissionsDecodesPrintBit(t *testing.T) {
	p := decodePermissions(4) // only bit 3 (print) set
	if !p.Print {
		t.Fatalf("expected Print=true for P=4, got %+v", p)
	}
	if p.Modify || p.Copy {
		t.Fatalf("expected only Print set, got %+v", p)
	}
}

func TestToUnicodeCMapRoundTripsThroughInspectorParser(t *testing.T) {
	mappings := map[int]string{65: "A", 66: "B", 0x2022: "•"}
	body := cmap.Write(mappings)
	got := cmap.Parse(body)
	for code, want := range mappings {
		if got[code] != want {
			t.Fatalf("round-trip mismatch for code %d: want %q got %q", code, want, got[code])
		}
	}
}

func TestEncodingDetailDistinguishesCharmapFromIdentity(t *testing.T) {
	if d := encodingDetail("WinAnsiEncoding"); d != "charmap" {
		t.Fatalf("expected charmap, got %q", d)
	}
	if d := encodingDetail("Symbol"); d != "identity" {
		t.Fatalf("expected identity, got %q", d)
	}
}

func TestPrefixKeyPrefixesOnlyWhenOwnerPresent(t *testing.T) {
	if prefixKey("", "Scope") != "Scope" {
		t.Fatalf("expected bare key when owner is empty")
	}
	if prefixKey("Table", "Scope") != "Table:Scope" {
		t.Fatalf("expected owner:key when owner is present")
	}
}

func TestEmbeddedFilesAndOCGsDefaultEmpty(t *testing.T) {
	doc := newOnePagerDoc(t, "BT ET\n")
	r := Inspect(doc, []byte("src"))
	if len(r.EmbeddedFiles) != 0 {
		t.Fatalf("expected no embedded files, got %+v", r.EmbeddedFiles)
	}
	if len(r.OCGs) != 0 {
		t.Fatalf("expected no OCG configs, got %+v", r.OCGs)
	}
	if !strings.Contains(r.DocumentInfo.PDFVersion, "1.") {
		t.Fatalf("expected a 1.x pdf_version, got %q", r.DocumentInfo.PDFVersion)
	}
}
