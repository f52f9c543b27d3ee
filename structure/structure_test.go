package structure

import (
	"testing"

	"github.com/a11ytag/pdftag/model"
)

func TestEnsureCreatesRootAndChildren(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)

	root := Node{
		Role: "Document",
		Children: []Node{
			{ID: "h1", Role: "H1"},
			{ID: "p1", Role: "P"},
		},
	}
	idx, err := h.Ensure(false, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx) != 2 {
		t.Fatalf("expected 2 indexed nodes, got %d: %+v", len(idx), idx)
	}
	if _, ok := idx["h1"]; !ok {
		t.Fatalf("expected h1 to be indexed")
	}

	catalog, _ := doc.Catalog()
	treeDict, ok := doc.DictAt(catalog, "StructTreeRoot")
	if !ok {
		t.Fatalf("expected StructTreeRoot on catalog")
	}
	kids, ok := doc.ArrayAt(treeDict, "K")
	if !ok || kids.Len() != 1 {
		t.Fatalf("expected StructTreeRoot to have 1 kid, got %+v", kids)
	}
	rootRef, _ := kids.Get(0)
	rootElem, ok := doc.ResolveDict(rootRef)
	if !ok {
		t.Fatalf("expected root kid to resolve to a dict")
	}
	role, _ := rootElem.GetName("S")
	if role.Val != "Document" {
		t.Fatalf("unexpected root role: %+v", role)
	}
	rootKids, ok := doc.ArrayAt(rootElem, "K")
	if !ok || rootKids.Len() != 2 {
		t.Fatalf("expected root to have 2 kids, got %+v", rootKids)
	}
	h1Ref, _ := rootKids.Get(0)
	h1Elem, _ := doc.ResolveDict(h1Ref)
	h1Role, _ := h1Elem.GetName("S")
	if h1Role.Val != "H1" {
		t.Fatalf("expected first kid role H1, got %+v", h1Role)
	}

	markInfo, ok := doc.DictAt(catalog, "MarkInfo")
	if !ok {
		t.Fatalf("expected MarkInfo on catalog")
	}
	marked, _ := markInfo.GetBool("Marked")
	if !marked {
		t.Fatalf("expected Marked=true")
	}
}

func TestEnsureStripExistingRemovesTreeFields(t *testing.T) {
	doc := model.NewDocument()
	catalog, _ := doc.Catalog()
	treeDict := model.NewDict()
	treeDict.Set("Type", model.NewName("StructTreeRoot"))
	treeDict.Set("K", model.NewArray())
	treeDict.Set("ParentTree", model.NewDict())
	treeDict.Set("ParentTreeNextKey", model.Int(5))
	treeRef := doc.Add(treeDict)
	catalog.Set("StructTreeRoot", treeRef)

	h := New(doc, nil)
	_, err := h.Ensure(true, Node{Role: "Document"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := treeDict.Get("ParentTree"); ok {
		t.Fatalf("expected ParentTree stripped")
	}
	if _, ok := treeDict.Get("ParentTreeNextKey"); ok {
		t.Fatalf("expected ParentTreeNextKey stripped")
	}
	if _, ok := treeDict.Get("Type"); !ok {
		t.Fatalf("expected root dictionary itself to be preserved")
	}
	kids, ok := doc.ArrayAt(treeDict, "K")
	if !ok || kids.Len() != 1 {
		t.Fatalf("expected a fresh root kid after strip, got %+v", kids)
	}
}

func TestAssembleAttributesBBoxProducesSingleDict(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)
	n := Node{Role: "Figure", BBox: &BBox{X: 10, Y: 20, Width: 30, Height: 40}}
	attr := h.assembleAttributes(n)
	d, ok := attr.(*model.Dict)
	if !ok {
		t.Fatalf("expected single dict for one attribute group, got %T", attr)
	}
	owner, _ := d.GetName("O")
	if owner.Val != "Layout" {
		t.Fatalf("unexpected owner: %+v", owner)
	}
	bbox, ok := d.GetArray("BBox")
	if !ok || bbox.Len() != 4 {
		t.Fatalf("expected 4-element BBox array, got %+v", bbox)
	}
	x0, _ := bbox.Get(0)
	x1, _ := bbox.Get(2)
	if x0.(model.Number).AsFloat() != 10 || x1.(model.Number).AsFloat() != 40 {
		t.Fatalf("unexpected bbox bounds: %+v", bbox)
	}
}

func TestAssembleAttributesMultipleOwnersProduceArray(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)
	scope := "Row"
	n := Node{
		Role:  "TH",
		BBox:  &BBox{X: 0, Y: 0, Width: 1, Height: 1},
		Scope: scope,
		Attributes: []Attribute{
			{Owner: "List", Key: "ListNumbering", Value: "Decimal"},
		},
	}
	attr := h.assembleAttributes(n)
	arr, ok := attr.(*model.Array)
	if !ok || arr.Len() != 3 {
		t.Fatalf("expected array of 3 attribute dicts, got %T %+v", attr, attr)
	}
}

func TestAssembleAttributesMergesSameOwner(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)
	n := Node{
		Role: "TH",
		Attributes: []Attribute{
			{Owner: "Layout", Key: "Placement", Value: "Block"},
		},
		BBox: &BBox{X: 0, Y: 0, Width: 10, Height: 10},
	}
	attr := h.assembleAttributes(n)
	d, ok := attr.(*model.Dict)
	if !ok {
		t.Fatalf("expected same-owner groups to merge into one dict, got %T", attr)
	}
	if _, ok := d.Get("BBox"); !ok {
		t.Fatalf("expected merged dict to retain BBox")
	}
	if _, ok := d.Get("Placement"); !ok {
		t.Fatalf("expected merged dict to retain generic Placement key")
	}
}

func TestAppendKidPromotesToArray(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)
	d := model.NewDict()
	refA := doc.Add(model.NewDict())
	refB := doc.Add(model.NewDict())
	d.Set("K", refA)
	h.appendKid(d, refB)
	arr, ok := d.GetArray("K")
	if !ok || arr.Len() != 2 {
		t.Fatalf("expected K promoted to a 2-element array, got %+v", arr)
	}
}

func TestUnidentifiedNodesNotIndexed(t *testing.T) {
	doc := model.NewDocument()
	h := New(doc, nil)
	root := Node{Role: "Document", Children: []Node{{Role: "P"}}}
	idx, err := h.Ensure(false, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx) != 0 {
		t.Fatalf("expected no indexed nodes (none carried an id), got %+v", idx)
	}
}
