package inspector

import (
	"sort"

	"github.com/a11ytag/pdftag/model"
)

// pageInfos builds one PageInfo per page: dimensions, tab order, the
// font resource names used, and the sorted, deduplicated set of MCIDs
// the structure tree references for that page.
func pageInfos(doc *model.Document) []PageInfo {
	pages, err := doc.Pages()
	if err != nil {
		return nil
	}

	mcidsByPage := collectMCIDsByPage(doc)

	out := make([]PageInfo, 0, len(pages))
	for i, ref := range pages {
		pageDict, ok := doc.PageDict(ref)
		if !ok {
			continue
		}
		info := PageInfo{Page: i + 1}
		if _, _, w, h, ok := doc.MediaBox(pageDict); ok {
			info.Width, info.Height = w, h
		}
		if tabs, ok := pageDict.GetName("Tabs"); ok {
			info.TabOrder = tabs.Val
		}
		if resources, ok := doc.Resources(pageDict); ok {
			if fonts, ok := doc.DictAt(resources, "Font"); ok {
				info.Fonts = fonts.Keys()
			}
		}
		info.MCIDs = mcidsByPage[ref]
		out = append(out, info)
	}
	return out
}

// collectMCIDsByPage walks the whole structure tree once, attributing
// each MCR's MCID to its owning page (the MCR's own /Pg, or the nearest
// enclosing StructElem's /Pg for a bare-integer kid), then dedupes and
// sorts ascending per page.
func collectMCIDsByPage(doc *model.Document) map[model.Ref][]int {
	out := map[model.Ref]map[int]struct{}{}
	catalog, ok := doc.Catalog()
	if !ok {
		return nil
	}
	treeDict, ok := doc.DictAt(catalog, "StructTreeRoot")
	if !ok {
		return nil
	}
	if k, ok := treeDict.Get("K"); ok {
		walkMCIDs(doc, k, model.Ref{}, out)
	}

	final := make(map[model.Ref][]int, len(out))
	for page, set := range out {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		final[page] = ids
	}
	return final
}

func walkMCIDs(doc *model.Document, k model.Object, ancestorPage model.Ref, out map[model.Ref]map[int]struct{}) {
	switch v := doc.Resolve(k).(type) {
	case *model.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			walkMCIDs(doc, item, ancestorPage, out)
		}
	case model.Number:
		if ancestorPage != (model.Ref{}) {
			record(out, ancestorPage, v.AsInt())
		}
	case *model.Dict:
		if typ, ok := v.GetName("Type"); ok && typ.Val == "MCR" {
			page := ancestorPage
			if pg, ok := v.GetRef("Pg"); ok {
				page = pg
			}
			if mcid, ok := v.GetNumber("MCID"); ok && page != (model.Ref{}) {
				record(out, page, mcid.AsInt())
			}
			return
		}
		// StructElem: descend into its kids, updating the ancestor page
		// when this element carries its own /Pg.
		page := ancestorPage
		if pg, ok := v.GetRef("Pg"); ok {
			page = pg
		}
		if kids, ok := v.Get("K"); ok {
			walkMCIDs(doc, kids, page, out)
		}
	}
}

func record(out map[model.Ref]map[int]struct{}, page model.Ref, mcid int) {
	set, ok := out[page]
	if !ok {
		set = map[int]struct{}{}
		out[page] = set
	}
	set[mcid] = struct{}{}
}
