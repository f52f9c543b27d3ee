// Package outline walks a tagged structure tree to collect heading text
// and builds a nested bookmark outline from it.
package outline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/a11ytag/pdftag/lexer"
	"github.com/a11ytag/pdftag/model"
	"golang.org/x/text/unicode/norm"
)

// Heading is one recovered heading, in document order.
type Heading struct {
	Level int
	Title string
	Page  int // 0-based
}

// Bookmark is one node of the nested outline tree the handler produces.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

var headingRolePattern = regexp.MustCompile(`^H([1-6])$`)
var bdcMCIDDict = regexp.MustCompile(`/MCID\s+(\d+)`)
var bdcLine = regexp.MustCompile(`^/(\S+)\s+(.*?)\s*BDC`)

// Collect walks doc's structure tree and returns every heading found, in
// document order, preferring the MCR recovery path, falling back to the
// dictionary path per node, and falling back to a whole-document
// content-stream scan only when the MCR path yields nothing at all.
func Collect(doc *model.Document) []Heading {
	catalog, ok := doc.Catalog()
	if !ok {
		return nil
	}
	treeDict, ok := doc.DictAt(catalog, "StructTreeRoot")
	if !ok {
		return nil
	}

	caches := newMCIDCaches(doc)

	var headings []Heading
	var walk func(obj model.Object)
	walk = func(obj model.Object) {
		ref, isRef := obj.(model.Ref)
		var elem *model.Dict
		if isRef {
			elem, ok = doc.ResolveDict(ref)
		} else {
			elem, ok = doc.Resolve(obj).(*model.Dict)
		}
		if !ok || elem == nil {
			return
		}
		if role, ok := elem.GetName("S"); ok {
			if m := headingRolePattern.FindStringSubmatch(role.Val); m != nil {
				level, _ := strconv.Atoi(m[1])
				title, page := recoverHeading(doc, elem, caches)
				headings = append(headings, Heading{Level: level, Title: title, Page: page})
			}
		}
		kids, _ := doc.ArrayAt(elem, "K")
		if kids == nil {
			if k, ok := elem.Get("K"); ok {
				walk(k)
			}
			return
		}
		for i := 0; i < kids.Len(); i++ {
			if k, ok := kids.Get(i); ok {
				walk(k)
			}
		}
	}

	if k, ok := treeDict.Get("K"); ok {
		if arr, ok := doc.ResolveArray(k); ok {
			for i := 0; i < arr.Len(); i++ {
				if item, ok := arr.Get(i); ok {
					walk(item)
				}
			}
		} else {
			walk(k)
		}
	}

	if len(headings) == 0 {
		return scanContentStreams(doc)
	}
	return headings
}

// recoverHeading implements the MCR path with a dictionary-path
// fallback: it prefers /ActualText, else concatenates recovered text
// from each MCR kid; the page comes from the node's own /Pg when
// present, else the first MCR kid's /Pg.
func recoverHeading(doc *model.Document, elem *model.Dict, caches map[int]map[int]string) (title string, page int) {
	page = -1
	if s, ok := elem.GetString("ActualText"); ok {
		title = norm.NFC.String(string(s.Bytes))
	}

	if pg, ok := elem.GetRef("Pg"); ok {
		page = pageIndex(doc, pg)
	}

	if title == "" {
		var parts []string
		forEachMCR(doc, elem, func(pg model.Ref, mcid int) {
			idx := pageIndex(doc, pg)
			if page == -1 {
				page = idx
			}
			if cache, ok := caches[idx]; ok {
				if text, ok := cache[mcid]; ok && text != "" {
					parts = append(parts, text)
				}
			}
		})
		title = norm.NFC.String(strings.Join(parts, ""))
	} else if page == -1 {
		forEachMCR(doc, elem, func(pg model.Ref, mcid int) {
			if page == -1 {
				page = pageIndex(doc, pg)
			}
		})
	}
	return title, page
}

// forEachMCR visits every MCR reachable directly under elem's /K (not
// descending into nested StructElems), invoking fn with its page ref and
// MCID. Handles the bare-MCID-integer form by using elem's own /Pg.
func forEachMCR(doc *model.Document, elem *model.Dict, fn func(pg model.Ref, mcid int)) {
	var ownPg model.Ref
	hasOwnPg := false
	if pg, ok := elem.GetRef("Pg"); ok {
		ownPg, hasOwnPg = pg, true
	}

	visit := func(obj model.Object) {
		switch v := doc.Resolve(obj).(type) {
		case model.Number:
			if hasOwnPg {
				fn(ownPg, v.AsInt())
			}
		case *model.Dict:
			if t, ok := v.GetName("Type"); ok && t.Val == "MCR" {
				pg, ok := v.GetRef("Pg")
				if !ok {
					pg, ok = ownPg, hasOwnPg
				}
				if ok {
					if mcid, ok := v.GetNumber("MCID"); ok {
						fn(pg, mcid.AsInt())
					}
				}
			}
		}
	}

	kids, _ := doc.ArrayAt(elem, "K")
	if kids == nil {
		if k, ok := elem.Get("K"); ok {
			visit(k)
		}
		return
	}
	for i := 0; i < kids.Len(); i++ {
		if k, ok := kids.Get(i); ok {
			visit(k)
		}
	}
}

func pageIndex(doc *model.Document, ref model.Ref) int {
	pages, err := doc.Pages()
	if err != nil {
		return -1
	}
	for i, p := range pages {
		if p == ref {
			return i
		}
	}
	return -1
}

// newMCIDCaches builds, for every page, a map from MCID to the text
// recovered from its marked-content span: re-scan the page's joined
// content bytes for BDC brackets naming an MCID (dictionary form
// "/Name <<...MCID n...>> BDC" or bare form "/Name n BDC"), and collect
// every Tj/TJ string inside the bracket.
func newMCIDCaches(doc *model.Document) map[int]map[int]string {
	pages, err := doc.Pages()
	if err != nil {
		return nil
	}
	caches := make(map[int]map[int]string, len(pages))
	for i, ref := range pages {
		page, ok := doc.PageDict(ref)
		if !ok {
			continue
		}
		var bufs [][]byte
		for _, s := range doc.ContentStreams(page) {
			bufs = append(bufs, model.DecodeStream(s))
		}
		caches[i] = mcidTextCache(lexer.Lex(lexer.Join(bufs)))
	}
	return caches
}

func mcidTextCache(recs []lexer.Record) map[int]string {
	cache := make(map[int]string)
	openMCID := -1
	open := false
	for _, rec := range recs {
		trimmed := strings.TrimSpace(rec.Text)
		if trimmed == "EMC" {
			open = false
			continue
		}
		if m := bdcLine.FindStringSubmatch(trimmed); m != nil {
			operand := m[2]
			if dm := bdcMCIDDict.FindStringSubmatch(operand); dm != nil {
				mcid, _ := strconv.Atoi(dm[1])
				openMCID, open = mcid, true
			} else if n, err := strconv.Atoi(strings.TrimSpace(operand)); err == nil {
				openMCID, open = n, true
			} else {
				open = false
			}
			continue
		}
		if !open {
			continue
		}
		if text, ok := extractShowText(trimmed); ok {
			cache[openMCID] += text
		}
	}
	return cache
}

// extractShowText pulls literal-string text out of a Tj or TJ line,
// unescaping \\, \(, \).
func extractShowText(line string) (string, bool) {
	switch {
	case strings.HasSuffix(line, "Tj"):
		start := strings.IndexByte(line, '(')
		end := strings.LastIndexByte(line, ')')
		if start < 0 || end <= start {
			return "", false
		}
		return unescapeLiteral(line[start+1 : end]), true
	case strings.HasSuffix(line, "TJ"):
		start := strings.IndexByte(line, '[')
		end := strings.LastIndexByte(line, ']')
		if start < 0 || end <= start {
			return "", false
		}
		body := line[start+1 : end]
		var out strings.Builder
		for i := 0; i < len(body); i++ {
			if body[i] == '(' {
				j := i + 1
				for j < len(body) && body[j] != ')' {
					if body[j] == '\\' {
						j++
					}
					j++
				}
				out.WriteString(unescapeLiteral(body[i+1 : j]))
				i = j
			}
		}
		return out.String(), true
	}
	return "", false
}

func unescapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// scanContentStreams is the content-stream-scan fallback: when the MCR
// path finds no headings at all, it scans every page for heading-named
// BDC brackets (/H1.../H6) in page order. There is no struct-tree role
// sequence to match against in this path, so each match becomes a
// heading at the level its own bracket name carries.
func scanContentStreams(doc *model.Document) []Heading {
	pages, err := doc.Pages()
	if err != nil {
		return nil
	}
	var headingBDC = regexp.MustCompile(`^/(H[1-6])\b`)
	var headings []Heading
	for i, ref := range pages {
		page, ok := doc.PageDict(ref)
		if !ok {
			continue
		}
		var bufs [][]byte
		for _, s := range doc.ContentStreams(page) {
			bufs = append(bufs, model.DecodeStream(s))
		}
		recs := lexer.Lex(lexer.Join(bufs))
		openLevel := 0
		var textBuf strings.Builder
		for _, rec := range recs {
			trimmed := strings.TrimSpace(rec.Text)
			if trimmed == "EMC" && openLevel > 0 {
				headings = append(headings, Heading{Level: openLevel, Title: norm.NFC.String(textBuf.String()), Page: i})
				openLevel = 0
				textBuf.Reset()
				continue
			}
			if m := headingBDC.FindStringSubmatch(trimmed); m != nil {
				level, _ := strconv.Atoi(strings.TrimPrefix(m[1], "H"))
				openLevel = level
				textBuf.Reset()
				continue
			}
			if openLevel > 0 {
				if text, ok := extractShowText(trimmed); ok {
					textBuf.WriteString(text)
				}
			}
		}
	}
	return headings
}

// Build constructs a nested outline from headings in document order: a
// level stack starting at (level=0, root); for each heading, pop while
// the stack top's level is >= the heading's level, then append under
// the new top and push.
func Build(headings []Heading) []Bookmark {
	type frame struct {
		level int
		kids  *[]Bookmark
	}
	var root []Bookmark
	stack := []frame{{level: 0, kids: &root}}

	for _, h := range headings {
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		top := stack[len(stack)-1]
		*top.kids = append(*top.kids, Bookmark{Title: h.Title, Page: h.Page})
		newTop := &(*top.kids)[len(*top.kids)-1].Children
		stack = append(stack, frame{level: h.Level, kids: newTop})
	}
	return root
}
