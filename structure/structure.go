// Package structure creates and extends a document's logical structure
// tree and builds the
// caller-identifier -> node index that the content-tagging and annotation
// handlers consume, mutating *model.Dict values in a model.Document
// arena directly rather than through a separate in-memory IR.
package structure

import (
	"github.com/a11ytag/pdftag/diag"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
)

// BBox is a layout rectangle in PDF user units.
type BBox struct {
	X, Y, Width, Height float64
}

// Attribute is one generic owner-scoped key/value pair.
type Attribute struct {
	Owner string
	Key   string
	Value string
}

// Node is the input shape for one structure element. Children are
// created recursively in order.
type Node struct {
	ID         string
	Role       string
	Language   string
	AltText    string
	ActualText string
	ElementID  string
	BBox       *BBox
	Scope      string
	ColSpan    *int
	RowSpan    *int
	Attributes []Attribute
	Children   []Node
}

// Index maps a caller-supplied node identifier to the indirect reference
// of its StructElem. Nodes without identifiers still exist in the tree
// but are not addressable through this index.
type Index map[string]model.Ref

// Handler creates and extends a document's structure tree.
type Handler struct {
	doc *model.Document
	log diag.Logger
}

// New returns a Handler operating on doc.
func New(doc *model.Document, log diag.Logger) *Handler {
	if log == nil {
		log = diag.Nop()
	}
	return &Handler{doc: doc, log: log}
}

// Ensure makes the document tagged: it locates or creates the catalog's
// StructTreeRoot, optionally strips an existing tree (removing /K,
// /ParentTree, /ParentTreeNextKey while preserving the root dictionary
// itself), creates a root StructElem of root.Role, appends it
// as a kid of the StructTreeRoot, then recursively creates root's children.
// It returns the node index populated for every identified node.
func (h *Handler) Ensure(stripExisting bool, root Node) (Index, error) {
	catalog, ok := h.doc.Catalog()
	if !ok {
		return nil, pdferr.Internal{Message: "catalog not found"}
	}

	treeRef, treeDict := h.structTreeRoot(catalog)
	if stripExisting {
		h.log.Debug("stripping existing structure tree")
		treeDict.Delete("K")
		treeDict.Delete("ParentTree")
		treeDict.Delete("ParentTreeNextKey")
	}

	idx := make(Index)
	rootElem, rootRef := h.createElem(root, treeRef)
	h.appendKid(treeDict, rootRef)
	h.registerAndDescend(root, rootElem, rootRef, idx)

	h.ensureMarked(catalog)
	h.log.Debug("structure tree built", diag.String("root_role", root.Role), diag.Int("nodes_indexed", len(idx)))
	return idx, nil
}

// structTreeRoot returns the catalog's StructTreeRoot, creating one if
// absent.
func (h *Handler) structTreeRoot(catalog *model.Dict) (model.Ref, *model.Dict) {
	if v, ok := catalog.Get("StructTreeRoot"); ok {
		if dict, ok := h.doc.ResolveDict(v); ok {
			if ref, isRef := v.(model.Ref); isRef {
				return ref, dict
			}
		}
	}
	dict := model.NewDict()
	dict.Set("Type", model.NewName("StructTreeRoot"))
	ref := h.doc.Add(dict)
	catalog.Set("StructTreeRoot", ref)
	h.log.Debug("created StructTreeRoot")
	return ref, dict
}

// createElem allocates a StructElem dictionary for n under parent (the
// StructTreeRoot ref for a root node, or another StructElem's ref for a
// child), setting role, optional Lang/Alt/ActualText/ID, and the /A
// attribute entry.
func (h *Handler) createElem(n Node, parent model.Ref) (*model.Dict, model.Ref) {
	elem := model.NewDict()
	elem.Set("Type", model.NewName("StructElem"))
	elem.Set("S", model.NewName(n.Role))
	elem.Set("P", parent)
	elem.Set("K", model.NewArray())

	if n.Language != "" {
		elem.Set("Lang", model.String{Bytes: []byte(n.Language)})
	}
	if n.AltText != "" {
		elem.Set("Alt", model.String{Bytes: []byte(n.AltText)})
	}
	if n.ActualText != "" {
		elem.Set("ActualText", model.String{Bytes: []byte(n.ActualText)})
	}
	if n.ElementID != "" {
		elem.Set("ID", model.String{Bytes: []byte(n.ElementID)})
	}

	if attr := h.assembleAttributes(n); attr != nil {
		elem.Set("A", attr)
	}

	ref := h.doc.Add(elem)
	return elem, ref
}

// assembleAttributes builds the /A attribute entry: a Layout bbox
// attribute if a bbox is provided, a Table attribute if any table
// field is present, generic attributes grouped and merged by owner; one
// resulting dict is set directly, multiple are wrapped in an array. Group
// order is Layout, then Table, then each generic owner in first-seen order.
func (h *Handler) assembleAttributes(n Node) model.Object {
	var owners []string
	groups := make(map[string]*model.Dict)

	group := func(owner string) *model.Dict {
		d, ok := groups[owner]
		if !ok {
			d = model.NewDict()
			d.Set("O", model.NewName(owner))
			groups[owner] = d
			owners = append(owners, owner)
		}
		return d
	}

	if n.BBox != nil {
		b := n.BBox
		layout := group("Layout")
		layout.Set("BBox", model.NewArray(
			model.Real(b.X), model.Real(b.Y),
			model.Real(b.X+b.Width), model.Real(b.Y+b.Height),
		))
	}

	if n.Scope != "" || n.ColSpan != nil || n.RowSpan != nil {
		table := group("Table")
		if n.Scope != "" {
			table.Set("Scope", model.NewName(n.Scope))
		}
		if n.ColSpan != nil {
			table.Set("ColSpan", model.Int(int64(*n.ColSpan)))
		}
		if n.RowSpan != nil {
			table.Set("RowSpan", model.Int(int64(*n.RowSpan)))
		}
	}

	for _, a := range n.Attributes {
		owner := a.Owner
		if owner == "" {
			owner = "UserProperties"
		}
		group(owner).Set(a.Key, model.String{Bytes: []byte(a.Value)})
	}

	switch len(owners) {
	case 0:
		return nil
	case 1:
		return groups[owners[0]]
	default:
		arr := model.NewArray()
		for _, o := range owners {
			arr.Append(groups[o])
		}
		return arr
	}
}

// appendKid appends kid to dict's /K, promoting /K to an array as needed.
// The content-tagging handler uses the same promotion rule for MCRs.
func (h *Handler) appendKid(dict *model.Dict, kid model.Object) {
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

// registerAndDescend registers n in idx if it carries a caller-supplied
// identifier, then recursively creates and registers its children.
func (h *Handler) registerAndDescend(n Node, elem *model.Dict, ref model.Ref, idx Index) {
	if n.ID != "" {
		idx[n.ID] = ref
	}
	for _, child := range n.Children {
		childElem, childRef := h.createElem(child, ref)
		h.appendKid(elem, childRef)
		h.registerAndDescend(child, childElem, childRef, idx)
	}
}

// ensureMarked sets the catalog's /MarkInfo /Marked flag, mutating an
// existing MarkInfo dictionary in place (so an existing indirect
// reference stays valid) or creating one if absent.
func (h *Handler) ensureMarked(catalog *model.Dict) {
	if existing, ok := h.doc.DictAt(catalog, "MarkInfo"); ok {
		existing.Set("Marked", model.Boolean(true))
		return
	}
	d := model.NewDict()
	d.Set("Marked", model.Boolean(true))
	catalog.Set("MarkInfo", d)
}
