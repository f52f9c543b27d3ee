package interpreter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/a11ytag/pdftag/instructions"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/outline"
	"github.com/a11ytag/pdftag/pdferr"
)

// applyMetadata writes the document-level metadata instruction:
// catalog /Lang, /ViewerPreferences /DisplayDocTitle, /MarkInfo
// /Marked, the info dictionary's /Title, every page's /Tabs, and an
// XMP metadata stream carrying dc:title and pdfuaid:part.
func (in *Interpreter) applyMetadata(md *instructions.Metadata) error {
	if md == nil {
		return nil
	}
	catalog, ok := in.doc.Catalog()
	if !ok {
		return pdferr.Internal{Message: "catalog not found"}
	}

	if md.Language != "" {
		catalog.Set("Lang", model.String{Bytes: []byte(md.Language)})
	}

	viewerPrefs, ok := in.doc.DictAt(catalog, "ViewerPreferences")
	if !ok {
		viewerPrefs = model.NewDict()
		catalog.Set("ViewerPreferences", viewerPrefs)
	}
	viewerPrefs.Set("DisplayDocTitle", model.Boolean(md.DisplayDocTitle))

	markInfo, ok := in.doc.DictAt(catalog, "MarkInfo")
	if !ok {
		markInfo = model.NewDict()
		catalog.Set("MarkInfo", markInfo)
	}
	markInfo.Set("Marked", model.Boolean(md.MarkInfo))

	if md.Title != "" {
		in.infoDict().Set("Title", model.String{Bytes: []byte(md.Title)})
	}

	if md.TabOrder != "" {
		tabsValue := md.TabOrder.PDFTabsValue()
		if tabsValue == "" {
			return pdferr.ValidationFailure{Message: "unknown tab_order: " + string(md.TabOrder)}
		}
		pages, err := in.doc.Pages()
		if err != nil {
			return pdferr.Internal{Message: "enumerating pages", Err: err}
		}
		for _, ref := range pages {
			if page, ok := in.doc.PageDict(ref); ok {
				page.Set("Tabs", model.NewName(tabsValue))
			}
		}
	}

	xmpRef := in.doc.Add(model.NewStream(xmpStreamDict(), buildXMP(md)))
	catalog.Set("Metadata", xmpRef)

	return nil
}

func xmpStreamDict() *model.Dict {
	d := model.NewDict()
	d.Set("Type", model.NewName("Metadata"))
	d.Set("Subtype", model.NewName("XML"))
	return d
}

// buildXMP renders a minimal Adobe XMP packet carrying dc:title and
// pdfuaid:part, the two fields the inspection report's XMP checks
// exercise. No XMP-authoring library exists anywhere in the retrieval
// pack, so this is hand-built XML text, justified in DESIGN.md.
func buildXMP(md *instructions.Metadata) []byte {
	var b strings.Builder
	b.WriteString(`<?xpacket begin="` + "﻿" + `" id="W5M0MpCehiHzreSzNTczkc9d"?>` + "\n")
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(` <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`  <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`    xmlns:dc="http://purl.org/dc/elements/1.1/"` + "\n")
	b.WriteString(`    xmlns:pdfuaid="http://www.aiim.org/pdfua/ns/id/">` + "\n")
	if md.Title != "" {
		b.WriteString("   <dc:title>\n")
		b.WriteString("    <rdf:Alt>\n")
		fmt.Fprintf(&b, `     <rdf:li xml:lang="x-default">%s</rdf:li>`+"\n", escapeXML(md.Title))
		b.WriteString("    </rdf:Alt>\n")
		b.WriteString("   </dc:title>\n")
	}
	if md.PDFUAIdentifier != 0 {
		fmt.Fprintf(&b, "   <pdfuaid:part>%s</pdfuaid:part>\n", strconv.Itoa(md.PDFUAIdentifier))
	}
	b.WriteString("  </rdf:Description>\n")
	b.WriteString(" </rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString(`<?xpacket end="w"?>`)
	return []byte(b.String())
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string { return xmlEscaper.Replace(s) }

// applyBookmarks builds a fresh /Outlines tree from struct-tree headings
// when the instruction asks to generate one.
func (in *Interpreter) applyBookmarks(b instructions.Bookmarks) error {
	if !b.GenerateFromHeadings {
		return nil
	}
	headings := outline.Collect(in.doc)
	if len(headings) == 0 {
		return nil
	}
	tree := outline.Build(headings)

	pages, err := in.doc.Pages()
	if err != nil {
		return pdferr.Internal{Message: "enumerating pages", Err: err}
	}

	catalog, ok := in.doc.Catalog()
	if !ok {
		return pdferr.Internal{Message: "catalog not found"}
	}

	outlinesDict := model.NewDict()
	outlinesDict.Set("Type", model.NewName("Outlines"))
	outlinesRef := in.doc.Add(outlinesDict)

	first, last, count := in.buildOutlineItems(tree, outlinesRef, pages)
	if first != (model.Ref{}) {
		outlinesDict.Set("First", first)
		outlinesDict.Set("Last", last)
	}
	outlinesDict.Set("Count", model.Int(int64(count)))
	catalog.Set("Outlines", outlinesRef)
	return nil
}

// buildOutlineItems creates one outline-item dictionary per bookmark,
// chaining /Next and /Prev, recursing into children for /First and
// /Last, and returns the sibling list's first ref, last ref, and total
// descendant count (for the parent's /Count).
func (in *Interpreter) buildOutlineItems(bookmarks []outline.Bookmark, parent model.Ref, pages []model.Ref) (first, last model.Ref, count int) {
	var refs []model.Ref
	for _, bm := range bookmarks {
		item := model.NewDict()
		item.Set("Title", model.String{Bytes: []byte(bm.Title)})
		item.Set("Parent", parent)
		if bm.Page >= 0 && bm.Page < len(pages) {
			item.Set("Dest", model.NewArray(pages[bm.Page], model.NewName("Fit")))
		}
		ref := in.doc.Add(item)

		childFirst, childLast, childCount := in.buildOutlineItems(bm.Children, ref, pages)
		if childFirst != (model.Ref{}) {
			item.Set("First", childFirst)
			item.Set("Last", childLast)
			item.Set("Count", model.Int(int64(childCount)))
		}
		count += 1 + childCount
		refs = append(refs, ref)
	}

	for i, ref := range refs {
		item, _ := in.doc.ResolveDict(ref)
		if i > 0 {
			item.Set("Prev", refs[i-1])
		}
		if i < len(refs)-1 {
			item.Set("Next", refs[i+1])
		}
	}

	if len(refs) == 0 {
		return model.Ref{}, model.Ref{}, 0
	}
	return refs[0], refs[len(refs)-1], count
}
