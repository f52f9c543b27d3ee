// Package tagging resolves bounding boxes to operator indices, splices
// BDC/EMC marked-content brackets into a page's content stream, and
// wires the parent tree: a spatial-index query followed by a rewrite
// pass that reconciles the struct tree, inverted into insertion instead
// of removal.
package tagging

import (
	"fmt"
	"strings"

	"github.com/a11ytag/pdftag/bbox"
	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/lexer"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
	"github.com/a11ytag/pdftag/structure"
)

// Entry is one content-tagging instruction.
type Entry struct {
	Node string
	Page int // 1-based
	BBox coords.Rect
}

// Handler splices marked-content brackets around tagged operators.
type Handler struct {
	doc       *model.Document
	lookup    bbox.FontLookup
	tolerance float64
}

// New returns a Handler. lookup resolves a page's Tf resource name to
// glyph widths for bbox resolution; pass nil to fall back to bbox's
// default flat advance.
func New(doc *model.Document, lookup bbox.FontLookup) *Handler {
	return &Handler{doc: doc, lookup: lookup, tolerance: 2}
}

// Apply groups entries by page and, for each page, resolves bboxes,
// allocates MCIDs, rewrites the content stream, and wires the parent
// tree. idx is the node index produced by the structure handler.
func (h *Handler) Apply(entries []Entry, idx structure.Index) error {
	byPage := make(map[int][]Entry)
	var pageOrder []int
	for _, e := range entries {
		if _, ok := byPage[e.Page]; !ok {
			pageOrder = append(pageOrder, e.Page)
		}
		byPage[e.Page] = append(byPage[e.Page], e)
	}

	pages, err := h.doc.Pages()
	if err != nil {
		return pdferr.Internal{Message: "enumerating pages", Err: err}
	}

	for _, pageNum := range pageOrder {
		if pageNum < 1 || pageNum > len(pages) {
			return pdferr.NotFound{What: fmt.Sprintf("page %d", pageNum), Container: "document"}
		}
		pageRef := pages[pageNum-1]
		page, ok := h.doc.PageDict(pageRef)
		if !ok {
			return pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", pageNum)}
		}
		if err := h.applyPage(pageRef, page, byPage[pageNum], idx); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) applyPage(pageRef model.Ref, page *model.Dict, entries []Entry, idx structure.Index) error {
	streams := h.doc.ContentStreams(page)
	var bufs [][]byte
	for _, s := range streams {
		bufs = append(bufs, model.DecodeStream(s))
	}
	recs := lexer.Lex(lexer.Join(bufs))

	fontLookup := h.pageFontLookup(page)
	matchesByEntry := make([][]bbox.Match, len(entries))
	for i, e := range entries {
		matchesByEntry[i] = bbox.Resolve(recs, fontLookup, e.BBox, h.tolerance)
	}

	mcidOfIndex := make(map[int]int)
	ownerOfMCID := make(map[int]model.Ref)
	nextMCID := 0

	for i, e := range entries {
		matches := matchesByEntry[i]
		if len(matches) == 0 {
			continue // dropped: resolves to no operator indices
		}
		var fresh []int
		for _, m := range matches {
			if _, ok := mcidOfIndex[m.OperatorIndex]; !ok {
				fresh = append(fresh, m.OperatorIndex)
			}
		}
		if len(fresh) == 0 {
			// Entirely covered by an earlier entry: skip allocation so no
			// MCID is left dangling in the parent tree.
			continue
		}
		ref, ok := idx[e.Node]
		if !ok {
			return pdferr.NotFound{What: "node " + e.Node, Container: "structure index"}
		}
		mcid := nextMCID
		nextMCID++
		for _, i := range fresh {
			mcidOfIndex[i] = mcid
		}
		ownerOfMCID[mcid] = ref
	}

	if len(ownerOfMCID) == 0 {
		return nil
	}

	rewritten := rewriteWithBrackets(recs, mcidOfIndex)
	h.doc.SetContentStreams(page, []*model.Stream{model.NewFlateStream(nil, rewritten)})

	for mcid := 0; mcid < nextMCID; mcid++ {
		owner, ok := ownerOfMCID[mcid]
		if !ok {
			continue
		}
		mcr := model.NewDict()
		mcr.Set("Type", model.NewName("MCR"))
		mcr.Set("Pg", pageRef)
		mcr.Set("MCID", model.Int(int64(mcid)))
		mcrRef := h.doc.Add(mcr)
		ownerDict, ok := h.doc.ResolveDict(owner)
		if !ok {
			continue
		}
		appendKid(ownerDict, mcrRef)
	}

	h.wireParentTree(page, nextMCID, ownerOfMCID)
	return nil
}

// wireParentTree allocates the page's StructParents key and appends the
// (key, parent_array) pair to the StructTreeRoot's parent tree.
func (h *Handler) wireParentTree(page *model.Dict, mcidCount int, ownerOfMCID map[int]model.Ref) {
	catalog, _ := h.doc.Catalog()
	treeDict, ok := h.doc.DictAt(catalog, "StructTreeRoot")
	if !ok {
		treeDict = model.NewDict()
		treeDict.Set("Type", model.NewName("StructTreeRoot"))
		ref := h.doc.Add(treeDict)
		catalog.Set("StructTreeRoot", ref)
	}

	key := 0
	if n, ok := treeDict.GetNumber("ParentTreeNextKey"); ok {
		key = n.AsInt()
	}
	page.Set("StructParents", model.Int(int64(key)))

	parentArray := model.NewArray()
	for n := 0; n < mcidCount; n++ {
		if ref, ok := ownerOfMCID[n]; ok {
			parentArray.Append(ref)
		} else {
			parentArray.Append(model.Null{})
		}
	}

	numTree, ok := h.doc.DictAt(treeDict, "ParentTree")
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
	nums.Append(parentArray)

	treeDict.Set("ParentTreeNextKey", model.Int(int64(key+1)))
}

// rewriteWithBrackets implements the bracket-insertion rule: outside
// text blocks, before emitting a tagged operator, close any open
// bracket with EMC if the active MCID differs, emit /P <</MCID n>> BDC,
// then the operator; on ET, close any open bracket before emitting ET;
// on BT, pass through without disturbing bracket state; pass-through
// operators close any open bracket first.
func rewriteWithBrackets(recs []lexer.Record, mcidOfIndex map[int]int) []byte {
	var out []string
	openMCID := -1

	closeIfOpen := func() {
		if openMCID != -1 {
			out = append(out, "EMC")
			openMCID = -1
		}
	}

	for _, rec := range recs {
		trimmed := strings.TrimSpace(rec.Text)
		switch trimmed {
		case "BT":
			out = append(out, rec.Text)
			continue
		case "ET":
			closeIfOpen()
			out = append(out, rec.Text)
			continue
		}

		if rec.OperatorIndex >= 0 {
			if mcid, tagged := mcidOfIndex[rec.OperatorIndex]; tagged {
				if openMCID != mcid {
					closeIfOpen()
					out = append(out, fmt.Sprintf("/P <</MCID %d>> BDC", mcid))
					openMCID = mcid
				}
				out = append(out, rec.Text)
				continue
			}
		}

		closeIfOpen()
		out = append(out, rec.Text)
	}
	closeIfOpen()

	return []byte(strings.Join(out, "\n"))
}

// pageFontLookup resolves a page's /Resources/Font entries to a bbox
// FontLookup. Width data comes from the font's /Widths array when
// present (FirstChar-relative simple-font widths); composite fonts and
// fonts without explicit widths fall through to the handler's lookup,
// and to bbox's default when that lookup is nil or has no entry.
func (h *Handler) pageFontLookup(page *model.Dict) bbox.FontLookup {
	resources, ok := h.doc.Resources(page)
	if !ok {
		return h.lookup
	}
	fonts, ok := h.doc.DictAt(resources, "Font")
	if !ok {
		return h.lookup
	}
	return func(name string) (bbox.FontWidths, bool) {
		fontRef, ok := fonts.Get(name)
		if !ok {
			return nil, false
		}
		fontDict, ok := h.doc.ResolveDict(fontRef)
		if !ok {
			return nil, false
		}
		if w, ok := simpleFontWidths(h.doc, fontDict); ok {
			return w, true
		}
		if h.lookup != nil {
			return h.lookup(name)
		}
		return nil, false
	}
}

type simpleWidths struct {
	firstChar int
	widths    []model.Number
	fallback  int
}

func (w simpleWidths) Width(code byte) int {
	i := int(code) - w.firstChar
	if i < 0 || i >= len(w.widths) {
		return w.fallback
	}
	return w.widths[i].AsInt()
}

func simpleFontWidths(doc *model.Document, font *model.Dict) (bbox.FontWidths, bool) {
	widthsArr, ok := doc.ArrayAt(font, "Widths")
	if !ok {
		return nil, false
	}
	first := 0
	if n, ok := font.GetNumber("FirstChar"); ok {
		first = n.AsInt()
	}
	nums := make([]model.Number, widthsArr.Len())
	for i := 0; i < widthsArr.Len(); i++ {
		v, _ := widthsArr.Get(i)
		if n, ok := doc.Resolve(v).(model.Number); ok {
			nums[i] = n
		}
	}
	return simpleWidths{firstChar: first, widths: nums, fallback: 500}, true
}

// appendKid appends kid to dict's /K, promoting /K to an array as
// needed, matching the structure package's own promotion rule.
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
