package annotation

import (
	"testing"

	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/structure"
)

func newOnePagerWithAnnot(t *testing.T) (*model.Document, model.Ref) {
	t.Helper()
	doc := model.NewDocument()
	catalog, _ := doc.Catalog()
	pagesRef, _ := catalog.Get("Pages")
	pagesDict, _ := doc.ResolveDict(pagesRef)

	page := model.NewDict()
	page.Set("Type", model.NewName("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", model.NewArray(model.Int(0), model.Int(0), model.Int(612), model.Int(792)))

	annot := model.NewDict()
	annot.Set("Type", model.NewName("Annot"))
	annot.Set("Subtype", model.NewName("Link"))
	annotRef := doc.Add(annot)
	page.Set("Annots", model.NewArray(annotRef))

	pageRef := doc.Add(page)
	kids, _ := pagesDict.GetArray("Kids")
	kids.Append(pageRef)
	pagesDict.Set("Count", model.Int(1))

	return doc, annotRef
}

func TestSetContentsSetsString(t *testing.T) {
	doc, annotRef := newOnePagerWithAnnot(t)
	if err := SetContents(doc, 1, 0, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	annot, _ := doc.ResolveDict(annotRef)
	s, ok := annot.GetString("Contents")
	if !ok || string(s.Bytes) != "hello" {
		t.Fatalf("expected Contents=hello, got %+v", s)
	}
}

func TestSetTUSetsString(t *testing.T) {
	doc, annotRef := newOnePagerWithAnnot(t)
	if err := SetTU(doc, 1, 0, "alt text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	annot, _ := doc.ResolveDict(annotRef)
	s, ok := annot.GetString("TU")
	if !ok || string(s.Bytes) != "alt text" {
		t.Fatalf("expected TU=alt text, got %+v", s)
	}
}

func TestSetContentsOutOfRangeIndexFails(t *testing.T) {
	doc, _ := newOnePagerWithAnnot(t)
	if err := SetContents(doc, 1, 5, "x"); err == nil {
		t.Fatalf("expected error for out-of-range annotation index")
	}
}

func TestAssociateWiresOBJRAndParentTree(t *testing.T) {
	doc, annotRef := newOnePagerWithAnnot(t)
	sh := structure.New(doc, nil)
	idx, err := sh.Ensure(false, structure.Node{
		Role:     "Document",
		Children: []structure.Node{{ID: "link1", Role: "Link"}},
	})
	if err != nil {
		t.Fatalf("unexpected structure error: %v", err)
	}

	if err := Associate(doc, 1, 0, "link1", idx); err != nil {
		t.Fatalf("unexpected associate error: %v", err)
	}

	annot, _ := doc.ResolveDict(annotRef)
	sp, ok := annot.GetNumber("StructParent")
	if !ok || sp.AsInt() != 0 {
		t.Fatalf("expected StructParent=0, got %+v", sp)
	}

	nodeRef := idx["link1"]
	nodeDict, _ := doc.ResolveDict(nodeRef)
	kids, _ := nodeDict.GetArray("K")
	if kids.Len() != 1 {
		t.Fatalf("expected 1 OBJR kid, got %d", kids.Len())
	}
	kidObj, _ := kids.Get(0)
	objrRef := kidObj.(model.Ref)
	objr, _ := doc.ResolveDict(objrRef)
	if name, _ := objr.GetName("Type"); name.Val != "OBJR" {
		t.Fatalf("expected OBJR kid, got %+v", objr)
	}
	if obj, ok := objr.Get("Obj"); !ok || obj.(model.Ref) != annotRef {
		t.Fatalf("expected OBJR Obj to reference the annotation, got %+v", obj)
	}

	catalog, _ := doc.Catalog()
	treeDict, _ := doc.DictAt(catalog, "StructTreeRoot")
	nextKey, _ := treeDict.GetNumber("ParentTreeNextKey")
	if nextKey.AsInt() != 1 {
		t.Fatalf("expected ParentTreeNextKey=1, got %+v", nextKey)
	}
	numTree, _ := doc.DictAt(treeDict, "ParentTree")
	nums, _ := numTree.GetArray("Nums")
	if nums.Len() != 2 {
		t.Fatalf("expected 2 Nums entries, got %d", nums.Len())
	}
}

func TestAssociateUnknownNodeFails(t *testing.T) {
	doc, _ := newOnePagerWithAnnot(t)
	if err := Associate(doc, 1, 0, "missing", structure.Index{}); err == nil {
		t.Fatalf("expected not-found error for unknown node id")
	}
}

func TestCreateWidgetAppendsAnnotAndField(t *testing.T) {
	doc, _ := newOnePagerWithAnnot(t)
	spec := WidgetSpec{Page: 1, FieldName: "signature", FieldType: "Sig", X: 10, Y: 20, W: 100, H: 30}
	if err := CreateWidget(doc, spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pages, _ := doc.Pages()
	page, _ := doc.PageDict(pages[0])
	annots, _ := doc.ArrayAt(page, "Annots")
	if annots.Len() != 2 {
		t.Fatalf("expected 2 annots (pre-existing link + new widget), got %d", annots.Len())
	}

	widgetObj, _ := annots.Get(1)
	widget, _ := doc.ResolveDict(widgetObj.(model.Ref))
	if sub, _ := widget.GetName("Subtype"); sub.Val != "Widget" {
		t.Fatalf("expected Widget subtype, got %+v", sub)
	}
	rect, _ := widget.GetArray("Rect")
	if rect.Len() != 4 {
		t.Fatalf("expected 4-element Rect, got %d", rect.Len())
	}
	x1, _ := rect.Get(2)
	if x1.(model.Number).AsFloat() != 110 {
		t.Fatalf("expected Rect URX=110, got %+v", x1)
	}

	catalog, _ := doc.Catalog()
	acroForm, ok := doc.DictAt(catalog, "AcroForm")
	if !ok {
		t.Fatalf("expected AcroForm to be created")
	}
	fields, _ := acroForm.GetArray("Fields")
	if fields.Len() != 1 {
		t.Fatalf("expected 1 field, got %d", fields.Len())
	}
}

func TestCreateWidgetButtonAppearanceDrawsRect(t *testing.T) {
	doc, _ := newOnePagerWithAnnot(t)
	spec := WidgetSpec{Page: 1, FieldName: "agree", FieldType: "Btn", W: 12, H: 12}
	if err := CreateWidget(doc, spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pages, _ := doc.Pages()
	page, _ := doc.PageDict(pages[0])
	annots, _ := doc.ArrayAt(page, "Annots")
	widgetObj, _ := annots.Get(1)
	widget, _ := doc.ResolveDict(widgetObj.(model.Ref))
	apDict, _ := widget.GetDict("AP")
	nStream, _ := apDict.GetRef("N")
	stream, _ := doc.ResolveStream(nStream)
	content := string(model.DecodeStream(stream))
	if content != "0 0 12 12 re S" {
		t.Fatalf("expected button appearance to draw a rect, got %q", content)
	}
}

func TestCreateWidgetOutOfRangePageFails(t *testing.T) {
	doc, _ := newOnePagerWithAnnot(t)
	spec := WidgetSpec{Page: 9, FieldName: "x", FieldType: "Tx"}
	if err := CreateWidget(doc, spec); err == nil {
		t.Fatalf("expected error for out-of-range page")
	}
}
