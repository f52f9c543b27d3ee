package inspector

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/a11ytag/pdftag/cmap"
	"github.com/a11ytag/pdftag/encoding"
	"github.com/a11ytag/pdftag/fontprog"
	"github.com/a11ytag/pdftag/model"
)

// fontRecords walks every page's /Resources/Font, dedupes by BaseFont
// name (falling back to the resource key when BaseFont is absent), and
// keeps the first observation's analytic fields while accumulating the
// sorted, deduplicated set of pages the font appears on.
func fontRecords(doc *model.Document) []FontRecord {
	pages, err := doc.Pages()
	if err != nil {
		return nil
	}

	order := []string{}
	records := map[string]*FontRecord{}
	pagesSeen := map[string]map[int]struct{}{}

	for i, ref := range pages {
		pageDict, ok := doc.PageDict(ref)
		if !ok {
			continue
		}
		resources, ok := doc.Resources(pageDict)
		if !ok {
			continue
		}
		fonts, ok := doc.DictAt(resources, "Font")
		if !ok {
			continue
		}
		for _, key := range fonts.Keys() {
			fontRef, ok := fonts.Get(key)
			if !ok {
				continue
			}
			fontDict, ok := doc.ResolveDict(fontRef)
			if !ok {
				continue
			}
			name := key
			if bf, ok := fontDict.GetName("BaseFont"); ok && bf.Val != "" {
				name = bf.Val
			}
			if _, ok := records[name]; !ok {
				records[name] = analyzeFont(doc, fontDict, name)
				order = append(order, name)
				pagesSeen[name] = map[int]struct{}{}
			}
			pagesSeen[name][i+1] = struct{}{}
		}
	}

	out := make([]FontRecord, 0, len(order))
	for _, name := range order {
		rec := records[name]
		seen := pagesSeen[name]
		ps := make([]int, 0, len(seen))
		for p := range seen {
			ps = append(ps, p)
		}
		sort.Ints(ps)
		rec.Pages = ps
		out = append(out, *rec)
	}
	return out
}

func analyzeFont(doc *model.Document, fontDict *model.Dict, name string) *FontRecord {
	rec := &FontRecord{Name: name}

	subtype, _ := fontDict.GetName("Subtype")
	rec.FontType = subtype.Val

	owner := fontDict
	if subtype.Val == "Type0" {
		if df, ok := doc.ArrayAt(fontDict, "DescendantFonts"); ok && df.Len() > 0 {
			if obj, ok := df.Get(0); ok {
				if d, ok := doc.ResolveDict(obj); ok {
					owner = d
					if cidType, ok := d.GetName("Subtype"); ok {
						rec.FontType = subtype.Val + "/" + cidType.Val
					}
				}
			}
		}
		if csi, ok := doc.DictAt(owner, "CIDSystemInfo"); ok {
			reg, _ := csi.GetString("Registry")
			ord, _ := csi.GetString("Ordering")
			rec.CIDSystemInfo = fmt.Sprintf("%s-%s", reg.Bytes, ord.Bytes)
		}
		if c2g, ok := owner.Get("CIDToGIDMap"); ok {
			switch v := doc.Resolve(c2g).(type) {
			case model.Name:
				rec.CIDToGIDMap = v.Val
			case *model.Stream:
				rec.CIDToGIDMap = "Stream"
			}
		}
	}

	if encName, ok := fontDict.GetName("Encoding"); ok {
		rec.Encoding = encName.Val
		if subtype.Val == "Type0" {
			// For composite fonts /Encoding names the CMap governing
			// code->CID mapping (Identity-H/V, or an embedded stream), not
			// a single-byte table; report it as cmap_info instead of the
			// simple-font encoding_detail.
			rec.CMapInfo = encName.Val
		} else {
			rec.EncodingDetail = encodingDetail(encName.Val)
		}
	} else if encDict, ok := doc.DictAt(fontDict, "Encoding"); ok {
		if base, ok := encDict.GetName("BaseEncoding"); ok {
			rec.Encoding = base.Val
			rec.EncodingDetail = encodingDetail(base.Val)
		}
	}

	if v, ok := fontDict.Get("ToUnicode"); ok {
		rec.HasToUnicode = true
		if stream, ok := doc.ResolveStream(v); ok {
			rec.ToUnicodeMappings = cmap.Parse(model.DecodeStream(stream))
		}
	}

	descriptor, ok := doc.DictAt(owner, "FontDescriptor")
	rec.HasFontDescriptor = ok
	if ok {
		if flags, ok := descriptor.GetNumber("Flags"); ok {
			rec.IsSymbolic = flags.AsInt()&4 != 0
		}
		if _, ok := descriptor.Get("CharSet"); ok {
			rec.HasCharSet = true
		}
		if _, ok := descriptor.Get("CIDSet"); ok {
			rec.HasCIDSet = true
		}
		for _, fileKey := range []string{"FontFile", "FontFile2", "FontFile3"} {
			v, ok := descriptor.Get(fileKey)
			if !ok {
				continue
			}
			stream, ok := doc.ResolveStream(v)
			if !ok {
				continue
			}
			rec.IsEmbedded = true
			data := model.DecodeStream(stream)
			info := fontprog.Analyze(data)
			rec.HasNotdefGlyph = info.HasNotdefGlyph
			for _, st := range info.CmapSubtables {
				rec.CMapSubtables = append(rec.CMapSubtables, fmt.Sprintf("%d/%d", st.PlatformID, st.EncodingID))
			}
			rec.FontProgramData = gzipBase64(data)
			break
		}
	}

	switch subtype.Val {
	case "Type3":
		if fm, ok := doc.ArrayAt(fontDict, "FontMatrix"); ok {
			rec.Type3Info = fmt.Sprintf("FontMatrix(%d entries)", fm.Len())
		}
		if cp, ok := doc.DictAt(fontDict, "CharProcs"); ok {
			rec.UnmappableCharCodes = unmappableType3Codes(doc, fontDict, cp)
		}
	case "Type1":
		if encDict, ok := doc.DictAt(fontDict, "Encoding"); ok {
			if diffs, ok := encDict.GetArray("Differences"); ok {
				for i := 0; i < diffs.Len(); i++ {
					item, _ := diffs.Get(i)
					if n, ok := doc.Resolve(item).(model.Name); ok {
						rec.Type1GlyphNames = append(rec.Type1GlyphNames, n.Val)
					}
				}
			}
		}
	}

	return rec
}

// unmappableType3Codes reports the codes a Type3 font's /Encoding
// /Differences names a glyph for that has no corresponding /CharProcs
// entry (so the code cannot be rendered or mapped to text).
func unmappableType3Codes(doc *model.Document, fontDict *model.Dict, charProcs *model.Dict) []int {
	encDict, ok := doc.DictAt(fontDict, "Encoding")
	if !ok {
		return nil
	}
	diffs, ok := encDict.GetArray("Differences")
	if !ok {
		return nil
	}
	var out []int
	code := 0
	for i := 0; i < diffs.Len(); i++ {
		item, _ := diffs.Get(i)
		switch v := doc.Resolve(item).(type) {
		case model.Number:
			code = v.AsInt()
		case model.Name:
			if _, has := charProcs.Get(v.Val); !has {
				out = append(out, code)
			}
			code++
		}
	}
	return out
}

// encodingDetail records which single-byte decoder the encoding package
// resolves name to: a real x/text charmap, or the identity fallback for
// PDF-only encodings x/text does not ship a table for.
func encodingDetail(name string) string {
	_ = encoding.Lookup(name)
	if name == "WinAnsiEncoding" || name == "MacRomanEncoding" {
		return "charmap"
	}
	return "identity"
}

func gzipBase64(data []byte) string {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
