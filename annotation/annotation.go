// Package annotation mutates annotation dictionaries, wires OBJR
// structure-tree associations, and creates Widget annotations backing
// AcroForm fields.
package annotation

import (
	"fmt"

	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
	"github.com/a11ytag/pdftag/structure"
)

// SetContents sets annotation (page, index)'s /Contents string.
func SetContents(doc *model.Document, page, index int, value string) error {
	ann, err := resolveAnnot(doc, page, index)
	if err != nil {
		return err
	}
	ann.Set("Contents", model.String{Bytes: []byte(value)})
	return nil
}

// SetTU sets annotation (page, index)'s /TU (alternate description) string.
func SetTU(doc *model.Document, page, index int, value string) error {
	ann, err := resolveAnnot(doc, page, index)
	if err != nil {
		return err
	}
	ann.Set("TU", model.String{Bytes: []byte(value)})
	return nil
}

// Associate attaches annotation (page, index) to structure node id: an
// OBJR referencing the annotation is appended to the node's /K, the
// annotation's /StructParent is set to a freshly allocated parent-tree
// key, and the pair (key, node) is appended to the parent tree's /Nums.
func Associate(doc *model.Document, page, index int, id string, idx structure.Index) error {
	annRef, ann, err := resolveAnnotRef(doc, page, index)
	if err != nil {
		return err
	}
	nodeRef, ok := idx[id]
	if !ok {
		return pdferr.NotFound{What: "node " + id, Container: "structure index"}
	}
	nodeDict, ok := doc.ResolveDict(nodeRef)
	if !ok {
		return pdferr.Internal{Message: "struct element dict missing for node " + id}
	}

	pageRef, err := pageRefAt(doc, page)
	if err != nil {
		return err
	}

	objr := model.NewDict()
	objr.Set("Type", model.NewName("OBJR"))
	objr.Set("Pg", pageRef)
	objr.Set("Obj", annRef)
	appendKid(nodeDict, doc.Add(objr))

	catalog, _ := doc.Catalog()
	treeDict, ok := doc.DictAt(catalog, "StructTreeRoot")
	if !ok {
		treeDict = model.NewDict()
		treeDict.Set("Type", model.NewName("StructTreeRoot"))
		treeRef := doc.Add(treeDict)
		catalog.Set("StructTreeRoot", treeRef)
	}

	key := 0
	if n, ok := treeDict.GetNumber("ParentTreeNextKey"); ok {
		key = n.AsInt()
	}
	ann.Set("StructParent", model.Int(int64(key)))

	numTree, ok := doc.DictAt(treeDict, "ParentTree")
	if !ok {
		numTree = model.NewDict()
		numTree.Set("Type", model.NewName("NumberTree"))
		numTree.Set("Nums", model.NewArray())
		treeDict.Set("ParentTree", numTree)
	}
	nums, ok := numTree.GetArray("Nums")
	if !ok {
		nums = model.NewArray()
		numTree.Set("Nums", nums)
	}
	nums.Append(model.Int(int64(key)))
	nums.Append(nodeRef)

	treeDict.Set("ParentTreeNextKey", model.Int(int64(key+1)))
	return nil
}

// WidgetSpec describes a Widget annotation to create for an AcroForm field.
type WidgetSpec struct {
	Page      int // 1-based
	FieldName string
	FieldType string // Tx, Ch, Btn, Sig
	TU        string
	X, Y, W, H float64
}

// CreateWidget creates a Widget annotation with a minimal appearance
// stream, appends it to the page's /Annots, and registers it as an
// AcroForm field.
func CreateWidget(doc *model.Document, spec WidgetSpec) error {
	pages, err := doc.Pages()
	if err != nil {
		return pdferr.Internal{Message: "enumerating pages", Err: err}
	}
	if spec.Page < 1 || spec.Page > len(pages) {
		return pdferr.NotFound{What: fmt.Sprintf("page %d", spec.Page), Container: fmt.Sprintf("document with %d pages", len(pages))}
	}
	pageRef := pages[spec.Page-1]
	page, ok := doc.PageDict(pageRef)
	if !ok {
		return pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", spec.Page)}
	}

	rect := model.NewArray(
		model.Real(spec.X), model.Real(spec.Y),
		model.Real(spec.X+spec.W), model.Real(spec.Y+spec.H),
	)

	widget := model.NewDict()
	widget.Set("Type", model.NewName("Annot"))
	widget.Set("Subtype", model.NewName("Widget"))
	widget.Set("T", model.String{Bytes: []byte(spec.FieldName)})
	widget.Set("FT", model.NewName(spec.FieldType))
	widget.Set("F", model.Int(4))
	widget.Set("Rect", rect)
	if spec.TU != "" {
		widget.Set("TU", model.String{Bytes: []byte(spec.TU)})
	}

	apStream := appearanceStream(spec.FieldType, spec.W, spec.H)
	apRef := doc.Add(apStream)
	apDict := model.NewDict()
	apDict.Set("N", apRef)
	widget.Set("AP", apDict)

	widgetRef := doc.Add(widget)

	annots, ok := doc.ArrayAt(page, "Annots")
	if !ok {
		annots = model.NewArray()
		page.Set("Annots", annots)
	}
	annots.Append(widgetRef)

	catalog, _ := doc.Catalog()
	acroForm, ok := doc.DictAt(catalog, "AcroForm")
	if !ok {
		acroForm = model.NewDict()
		acroForm.Set("Fields", model.NewArray())
		acroFormRef := doc.Add(acroForm)
		catalog.Set("AcroForm", acroFormRef)
	}
	fields, ok := acroForm.GetArray("Fields")
	if !ok {
		fields = model.NewArray()
		acroForm.Set("Fields", fields)
	}
	fields.Append(widgetRef)

	return nil
}

// appearanceStream builds a minimal Form XObject: a stroked (unfilled)
// rectangle for button fields, a single baseline stroke otherwise.
func appearanceStream(fieldType string, w, h float64) *model.Stream {
	var content string
	if fieldType == "Btn" {
		content = fmt.Sprintf("0 0 %g %g re S", w, h)
	} else {
		content = fmt.Sprintf("0 0 m %g 0 l S", w)
	}
	dict := model.NewDict()
	dict.Set("Type", model.NewName("XObject"))
	dict.Set("Subtype", model.NewName("Form"))
	dict.Set("BBox", model.NewArray(model.Int(0), model.Int(0), model.Real(w), model.Real(h)))
	return model.NewFlateStream(dict, []byte(content))
}

func pageRefAt(doc *model.Document, page int) (model.Ref, error) {
	pages, err := doc.Pages()
	if err != nil {
		return model.Ref{}, pdferr.Internal{Message: "enumerating pages", Err: err}
	}
	if page < 1 || page > len(pages) {
		return model.Ref{}, pdferr.NotFound{What: fmt.Sprintf("page %d", page), Container: fmt.Sprintf("document with %d pages", len(pages))}
	}
	return pages[page-1], nil
}

func resolveAnnot(doc *model.Document, page, index int) (*model.Dict, error) {
	_, ann, err := resolveAnnotRef(doc, page, index)
	return ann, err
}

func resolveAnnotRef(doc *model.Document, page, index int) (model.Ref, *model.Dict, error) {
	pageRef, err := pageRefAt(doc, page)
	if err != nil {
		return model.Ref{}, nil, err
	}
	pageDict, ok := doc.PageDict(pageRef)
	if !ok {
		return model.Ref{}, nil, pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", page)}
	}
	annots, ok := doc.ArrayAt(pageDict, "Annots")
	if !ok || index < 0 || index >= annots.Len() {
		count := 0
		if annots != nil {
			count = annots.Len()
		}
		return model.Ref{}, nil, pdferr.NotFound{
			What:      fmt.Sprintf("annotation index %d on page %d", index, page),
			Container: fmt.Sprintf("page with %d annotations", count),
		}
	}
	obj, _ := annots.Get(index)
	ref, ok := obj.(model.Ref)
	if !ok {
		return model.Ref{}, nil, pdferr.Internal{Message: "annotation entry is not an indirect reference"}
	}
	annDict, ok := doc.ResolveDict(ref)
	if !ok {
		return model.Ref{}, nil, pdferr.Internal{Message: "annotation dict missing"}
	}
	return ref, annDict, nil
}

// appendKid appends kid to dict's /K, promoting /K to an array as needed,
// matching the structure package's own promotion rule.
func appendKid(dict *model.Dict, kid model.Object) {
	existing, ok := dict.Get("K")
	if !ok {
		dict.Set("K", model.NewArray(kid))
		return
	}
	if arr, ok := existing.(*model.Array); ok {
		arr.Append(kid)
		return
	}
	dict.Set("K", model.NewArray(existing, kid))
}
