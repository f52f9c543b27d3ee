// Package font mutates font dictionaries and their descriptors: CIDSet
// bitmaps, CharSet strings, encoding differences, ToUnicode CMaps,
// glyph widths, and minimal font descriptors.
package font

import (
	"fmt"
	"sort"

	"github.com/a11ytag/pdftag/cmap"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/pdferr"
)

// Handler locates font dictionaries by (page, resource key) and mutates
// them in place.
type Handler struct {
	doc *model.Document
}

func New(doc *model.Document) *Handler { return &Handler{doc: doc} }

// locate resolves a (page, key) locator to the font dictionary.
func (h *Handler) locate(page int, key string) (*model.Dict, error) {
	pages, err := h.doc.Pages()
	if err != nil {
		return nil, pdferr.Internal{Message: "enumerating pages", Err: err}
	}
	if page < 1 || page > len(pages) {
		return nil, pdferr.NotFound{What: fmt.Sprintf("page %d", page), Container: fmt.Sprintf("document with %d pages", len(pages))}
	}
	pageDict, ok := h.doc.PageDict(pages[page-1])
	if !ok {
		return nil, pdferr.Internal{Message: fmt.Sprintf("page %d dict missing", page)}
	}
	resources, ok := h.doc.Resources(pageDict)
	if !ok {
		return nil, pdferr.NotFound{What: "Resources", Container: fmt.Sprintf("page %d", page)}
	}
	fonts, ok := h.doc.DictAt(resources, "Font")
	if !ok {
		return nil, pdferr.NotFound{What: "Font resources", Container: fmt.Sprintf("page %d", page)}
	}
	ref, ok := fonts.Get(key)
	if !ok {
		return nil, pdferr.NotFound{What: "font " + key, Container: fmt.Sprintf("page %d /Font", page)}
	}
	fontDict, ok := h.doc.ResolveDict(ref)
	if !ok {
		return nil, pdferr.Internal{Message: "font dict missing for " + key}
	}
	return fontDict, nil
}

// descriptorOwner returns the dict a FontDescriptor attaches to: the
// descendant CID font for Type0, the font dict itself otherwise.
func (h *Handler) descriptorOwner(fontDict *model.Dict) *model.Dict {
	if subtype, ok := fontDict.GetName("Subtype"); ok && subtype.Val == "Type0" {
		if df, ok := h.doc.ArrayAt(fontDict, "DescendantFonts"); ok && df.Len() > 0 {
			if obj, ok := df.Get(0); ok {
				if d, ok := h.doc.ResolveDict(obj); ok {
					return d
				}
			}
		}
	}
	return fontDict
}

func (h *Handler) descriptorOf(owner *model.Dict) (*model.Dict, bool) {
	return h.doc.DictAt(owner, "FontDescriptor")
}

// WriteCIDSet builds the CIDSet bitmap for cids (size = floor(max(cid)/8)+1,
// bit 7-(c mod 8) of byte c/8 set for each cid) and stores it under
// /CIDSet on the font's descriptor.
func (h *Handler) WriteCIDSet(page int, key string, cids []int) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	owner := h.descriptorOwner(fontDict)
	descriptor, ok := h.descriptorOf(owner)
	if !ok {
		return pdferr.NotFound{What: "FontDescriptor", Container: "font " + key}
	}
	if len(cids) == 0 {
		descriptor.Set("CIDSet", h.doc.Add(model.NewStream(model.NewDict(), []byte{0})))
		return nil
	}
	max := cids[0]
	for _, c := range cids {
		if c > max {
			max = c
		}
	}
	bitmap := make([]byte, max/8+1)
	for _, c := range cids {
		bitmap[c/8] |= 1 << uint(7-c%8)
	}
	ref := h.doc.Add(model.NewStream(model.NewDict(), bitmap))
	descriptor.Set("CIDSet", ref)
	return nil
}

// WriteCharSet concatenates "/name" for each glyph name into one
// slash-prefixed string and stores it under /CharSet on the descriptor.
func (h *Handler) WriteCharSet(page int, key string, glyphNames []string) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	owner := h.descriptorOwner(fontDict)
	descriptor, ok := h.descriptorOf(owner)
	if !ok {
		return pdferr.NotFound{What: "FontDescriptor", Container: "font " + key}
	}
	s := ""
	for _, n := range glyphNames {
		s += "/" + n
	}
	descriptor.Set("CharSet", model.String{Bytes: []byte(s)})
	return nil
}

// SetEncoding sets /Encoding on the font dictionary to name.
func (h *Handler) SetEncoding(page int, key string, name string) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	fontDict.Set("Encoding", model.NewName(name))
	return nil
}

// SetDifferences ensures /Encoding is a dictionary (creating one if
// absent or a bare name), and writes /Differences as the input
// code->glyph_name map flattened into an alternating number/name array
// in ascending code order.
func (h *Handler) SetDifferences(page int, key string, differences map[int]string) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	encDict, ok := fontDict.GetDict("Encoding")
	if !ok {
		encDict = model.NewDict()
		encDict.Set("Type", model.NewName("Encoding"))
		if existingName, wasName := fontDict.GetName("Encoding"); wasName {
			encDict.Set("BaseEncoding", existingName)
		}
		fontDict.Set("Encoding", encDict)
	}

	codes := make([]int, 0, len(differences))
	for c := range differences {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	arr := model.NewArray()
	for _, c := range codes {
		arr.Append(model.Int(int64(c)))
		arr.Append(model.NewName(differences[c]))
	}
	encDict.Set("Differences", arr)
	return nil
}

// WriteToUnicode emits a standard ToUnicode CMap stream from mappings
// and stores it under /ToUnicode on the font dictionary.
func (h *Handler) WriteToUnicode(page int, key string, mappings map[int]string) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	body := cmap.Write(mappings)
	streamDict := model.NewDict()
	ref := h.doc.Add(model.NewStream(streamDict, body))
	fontDict.Set("ToUnicode", ref)
	return nil
}

// SetWidths writes glyph widths. For Type0 fonts, writes a /W array on
// the descendant CID font: [cid1 [w1] cid2 [w2] ...] in ascending CID
// order. For simple fonts, updates /Widths in place at code-FirstChar
// when it exists, else allocates a fresh array spanning [min,max] of the
// supplied codes, zero-filled and then populated.
func (h *Handler) SetWidths(page int, key string, widths map[int]int) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	if subtype, ok := fontDict.GetName("Subtype"); ok && subtype.Val == "Type0" {
		df, ok := h.doc.ArrayAt(fontDict, "DescendantFonts")
		if !ok || df.Len() == 0 {
			return pdferr.NotFound{What: "DescendantFonts", Container: "font " + key}
		}
		obj, _ := df.Get(0)
		cidFont, ok := h.doc.ResolveDict(obj)
		if !ok {
			return pdferr.Internal{Message: "descendant CID font dict missing"}
		}
		merged := existingCIDWidths(h.doc, cidFont)
		for c, width := range widths {
			merged[c] = width
		}
		cids := make([]int, 0, len(merged))
		for c := range merged {
			cids = append(cids, c)
		}
		sort.Ints(cids)
		w := model.NewArray()
		for _, c := range cids {
			w.Append(model.Int(int64(c)))
			w.Append(model.NewArray(model.Int(int64(merged[c]))))
		}
		cidFont.Set("W", w)
		return nil
	}

	if existing, ok := h.doc.ArrayAt(fontDict, "Widths"); ok {
		first := 0
		if n, ok := fontDict.GetNumber("FirstChar"); ok {
			first = n.AsInt()
		}
		for code, width := range widths {
			i := code - first
			if i < 0 || i >= existing.Len() {
				continue
			}
			existing.Items[i] = model.Int(int64(width))
		}
		return nil
	}

	if len(widths) == 0 {
		return nil
	}
	min, max := minMaxKeys(widths)
	arr := make([]model.Object, max-min+1)
	for i := range arr {
		arr[i] = model.Int(0)
	}
	for code, width := range widths {
		arr[code-min] = model.Int(int64(width))
	}
	fontDict.Set("FirstChar", model.Int(int64(min)))
	fontDict.Set("LastChar", model.Int(int64(max)))
	fontDict.Set("Widths", model.NewArray(arr...))
	return nil
}

// existingCIDWidths reads a descendant CID font's /W array back into a
// map, so a later set_widths call merges onto earlier calls instead of
// replacing the whole array. Only the single-width-array form
// `cid [w]` this handler itself writes is parsed; any other /W shape
// found on the document (a range form `c1 c2 w`, or `cid [w1 w2 ...]`)
// contributes no entries, so it is absent from the /W array SetWidths
// writes back.
func existingCIDWidths(doc *model.Document, cidFont *model.Dict) map[int]int {
	out := make(map[int]int)
	arr, ok := doc.ArrayAt(cidFont, "W")
	if !ok {
		return out
	}
	for i := 0; i+1 < arr.Len(); i += 2 {
		cidObj, _ := arr.Get(i)
		cidNum, ok := doc.Resolve(cidObj).(model.Number)
		if !ok {
			continue
		}
		widthsObj, _ := arr.Get(i + 1)
		widthsArr, ok := doc.Resolve(widthsObj).(*model.Array)
		if !ok || widthsArr.Len() != 1 {
			continue
		}
		wObj, _ := widthsArr.Get(0)
		wNum, ok := doc.Resolve(wObj).(model.Number)
		if !ok {
			continue
		}
		out[cidNum.AsInt()] = wNum.AsInt()
	}
	return out
}

func minMaxKeys(m map[int]int) (min, max int) {
	first := true
	for k := range m {
		if first {
			min, max = k, k
			first = false
			continue
		}
		if k < min {
			min = k
		}
		if k > max {
			max = k
		}
	}
	return
}

// AddFontDescriptor creates a fresh minimal FontDescriptor and attaches
// it to the font (or its descendant CID font, for Type0).
func (h *Handler) AddFontDescriptor(page int, key string) error {
	fontDict, err := h.locate(page, key)
	if err != nil {
		return err
	}
	owner := h.descriptorOwner(fontDict)

	name := key
	if bf, ok := owner.GetName("BaseFont"); ok {
		name = bf.Val
	} else if bf, ok := fontDict.GetName("BaseFont"); ok {
		name = bf.Val
	}

	descriptor := model.NewDict()
	descriptor.Set("Type", model.NewName("FontDescriptor"))
	descriptor.Set("FontName", model.NewName(name))
	descriptor.Set("Flags", model.Int(32))
	descriptor.Set("FontBBox", model.NewArray(model.Int(0), model.Int(0), model.Int(1000), model.Int(1000)))
	descriptor.Set("ItalicAngle", model.Int(0))
	descriptor.Set("Ascent", model.Int(800))
	descriptor.Set("Descent", model.Int(-200))
	descriptor.Set("CapHeight", model.Int(700))
	descriptor.Set("StemV", model.Int(80))

	ref := h.doc.Add(descriptor)
	owner.Set("FontDescriptor", ref)
	return nil
}
