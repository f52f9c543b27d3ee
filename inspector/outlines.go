package inspector

import (
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/outline"
)

// outlines reports the document's outline tree: if the catalog carries
// an /Outlines dictionary it is walked directly (/First, /Next, /Dest),
// the way a PDF reader would; otherwise the report falls back to
// deriving bookmarks from heading structure elements, the same
// derivation the bookmark handler itself uses when asked to generate
// one.
func outlines(doc *model.Document) []Outline {
	catalog, ok := doc.Catalog()
	if !ok {
		return nil
	}
	if outlinesDict, ok := doc.DictAt(catalog, "Outlines"); ok {
		if first, ok := outlinesDict.Get("First"); ok {
			return walkOutlineBranch(doc, first)
		}
	}

	headings := outline.Collect(doc)
	if len(headings) == 0 {
		return nil
	}
	return fromBookmarks(outline.Build(headings))
}

func walkOutlineBranch(doc *model.Document, first model.Object) []Outline {
	var out []Outline
	current := first
	for current != nil {
		item, ok := doc.ResolveDict(current)
		if !ok {
			break
		}
		o := Outline{Page: -1}
		if title, ok := item.GetString("Title"); ok {
			o.Title = string(title.Bytes)
		}
		if dest, ok := item.Get("Dest"); ok {
			o.Page = resolveDestPage(doc, dest)
		}
		if childFirst, ok := item.Get("First"); ok {
			o.Children = walkOutlineBranch(doc, childFirst)
		}
		out = append(out, o)
		next, ok := item.Get("Next")
		if !ok {
			break
		}
		current = next
	}
	return out
}

// resolveDestPage resolves a /Dest entry (an array [page /Fit ...], the
// only shape this module ever writes) to a 1-based page number, or -1
// if it does not resolve.
func resolveDestPage(doc *model.Document, dest model.Object) int {
	arr, ok := doc.Resolve(dest).(*model.Array)
	if !ok || arr.Len() == 0 {
		return -1
	}
	first, _ := arr.Get(0)
	ref, ok := first.(model.Ref)
	if !ok {
		return -1
	}
	return pageNumber(doc, ref)
}

func fromBookmarks(bookmarks []outline.Bookmark) []Outline {
	out := make([]Outline, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = Outline{Title: b.Title, Page: b.Page, Children: fromBookmarks(b.Children)}
	}
	return out
}
