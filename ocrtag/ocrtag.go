// Package ocrtag appends invisible-text content streams carrying
// already-recognized OCR words over scanned pages, so the page's text
// layer matches what a reader sees without disturbing the visible
// imaging program.
package ocrtag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
)

// Word is one recognized word with its page-space bounding box.
type Word struct {
	Text string
	BBox coords.Rect
}

// Record is one page's OCR result.
type Record struct {
	Page  int // 1-based
	Words []Word
}

// Handler registers an invisible Helvetica font and injects positioned
// Tj runs for each OCR record's words.
type Handler struct {
	doc *model.Document
}

func New(doc *model.Document) *Handler { return &Handler{doc: doc} }

var fontKeyPattern = regexp.MustCompile(`^F(\d+)$`)

// Apply appends one invisible-text content stream per record.
func (h *Handler) Apply(records []Record) error {
	pages, err := h.doc.Pages()
	if err != nil {
		return pdferr.Internal{Message: "enumerating pages", Err: err}
	}
	for _, rec := range records {
		if rec.Page < 1 || rec.Page > len(pages) {
			return pdferr.NotFound{What: fmt.Sprintf("page %d", rec.Page), Container: fmt.Sprintf("document with %d pages", len(pages))}
		}
		pageDict, ok := h.doc.PageDict(pages[rec.Page-1])
		if !ok {
			return pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", rec.Page)}
		}
		key := h.ensureHelvetica(pageDict)
		stream := buildContentStream(key, rec.Words)
		h.doc.AppendContentStream(pageDict, model.NewFlateStream(nil, stream))
	}
	return nil
}

// ensureHelvetica finds an existing Helvetica Type1 font resource on the
// page and returns its key, or registers a fresh one under the
// lowest-numbered unused Fk key.
func (h *Handler) ensureHelvetica(page *model.Dict) string {
	resources, ok := h.doc.Resources(page)
	if !ok {
		resources = model.NewDict()
		page.Set("Resources", resources)
	}
	fonts, ok := h.doc.DictAt(resources, "Font")
	if !ok {
		fonts = model.NewDict()
		resources.Set("Font", fonts)
	}

	for _, key := range fonts.Keys() {
		ref, _ := fonts.Get(key)
		if fontDict, ok := h.doc.ResolveDict(ref); ok {
			if bf, ok := fontDict.GetName("BaseFont"); ok && bf.Val == "Helvetica" {
				return key
			}
		}
	}

	used := make(map[int]bool)
	for _, key := range fonts.Keys() {
		if m := fontKeyPattern.FindStringSubmatch(key); m != nil {
			n, _ := strconv.Atoi(m[1])
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	key := fmt.Sprintf("F%d", n)

	fontDict := model.NewDict()
	fontDict.Set("Type", model.NewName("Font"))
	fontDict.Set("Subtype", model.NewName("Type1"))
	fontDict.Set("BaseFont", model.NewName("Helvetica"))
	fontDict.Set("Encoding", model.NewName("WinAnsiEncoding"))
	fonts.Set(key, h.doc.Add(fontDict))
	return key
}

// buildContentStream emits the invisible-text program: 3 Tr once, then
// one /Fk size Tf, one positioning Tm, and one Tj per non-empty word.
func buildContentStream(fontKey string, words []Word) []byte {
	var b strings.Builder
	b.WriteString("BT\n")
	b.WriteString("3 Tr\n")
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		size := w.BBox.Height
		if size <= 0 {
			size = 12
		}
		fmt.Fprintf(&b, "/%s %s Tf\n", fontKey, formatNumber(size))
		fmt.Fprintf(&b, "1 0 0 1 %s %s Tm\n", formatNumber(w.BBox.X), formatNumber(w.BBox.Y))
		fmt.Fprintf(&b, "(%s) Tj\n", escapeLiteral(w.Text))
	}
	b.WriteString("ET\n")
	return []byte(b.String())
}

// formatNumber renders a float with exactly two decimal places,
// independent of locale (Go's strconv is already locale-invariant; the
// fixed precision is what the PDF number format requires here).
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
