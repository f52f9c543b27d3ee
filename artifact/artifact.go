// Package artifact splices /Artifact BDC/EMC brackets around selected
// content-stream operators: the same bracket-insertion machinery package
// tagging uses, without MCID allocation or parent-tree wiring.
package artifact

import (
	"fmt"
	"strings"

	"github.com/a11ytag/pdftag/bbox"
	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/lexer"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
)

// Entry is one artifact instruction.
type Entry struct {
	Type string // layout, header, footer, pagination, background (case-insensitive)
	Page int    // 1-based
	BBox coords.Rect
}

// Handler splices artifact brackets around selected operators.
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

// artifactType maps an entry's case-insensitive type to its PDF
// /Type value; unknown types default to Layout.
func artifactType(t string) string {
	switch strings.ToLower(t) {
	case "layout":
		return "Layout"
	case "header":
		return "Header"
	case "footer":
		return "Footer"
	case "pagination":
		return "Pagination"
	case "background":
		return "Background"
	default:
		return "Layout"
	}
}

// Apply groups entries by page and, for each page, resolves bboxes and
// rewrites the content stream with /Artifact brackets. Entries resolving
// to the same operator index coalesce, first entry wins.
func (h *Handler) Apply(entries []Entry) error {
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
		page, ok := h.doc.PageDict(pages[pageNum-1])
		if !ok {
			return pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", pageNum)}
		}
		if err := h.applyPage(page, byPage[pageNum]); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) applyPage(page *model.Dict, entries []Entry) error {
	streams := h.doc.ContentStreams(page)
	var bufs [][]byte
	for _, s := range streams {
		bufs = append(bufs, model.DecodeStream(s))
	}
	recs := lexer.Lex(lexer.Join(bufs))
	fontLookup := h.pageFontLookup(page)

	typeOfIndex := make(map[int]string)
	for _, e := range entries {
		matches := bbox.Resolve(recs, fontLookup, e.BBox, h.tolerance)
		t := artifactType(e.Type)
		for _, m := range matches {
			if _, ok := typeOfIndex[m.OperatorIndex]; !ok {
				typeOfIndex[m.OperatorIndex] = t
			}
		}
	}
	if len(typeOfIndex) == 0 {
		return nil
	}

	rewritten := rewriteWithArtifacts(recs, typeOfIndex)
	h.doc.SetContentStreams(page, []*model.Stream{model.NewFlateStream(nil, rewritten)})
	return nil
}

// rewriteWithArtifacts applies the same bracket-insertion rule package
// tagging uses for MCID brackets, using the artifact type name itself
// (for example "Header") as the bracket's identity so adjacent same-type
// operators share one BDC/EMC span.
func rewriteWithArtifacts(recs []lexer.Record, typeOfIndex map[int]string) []byte {
	var out []string
	open := ""

	closeIfOpen := func() {
		if open != "" {
			out = append(out, "EMC")
			open = ""
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
			if t, tagged := typeOfIndex[rec.OperatorIndex]; tagged {
				if open != t {
					closeIfOpen()
					out = append(out, fmt.Sprintf("/Artifact <</Type /%s>> BDC", t))
					open = t
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
// FontLookup, preferring explicit /Widths data over the caller-supplied
// fallback lookup.
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
