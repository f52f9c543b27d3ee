package inspector

import (
	"fmt"
	"strings"

	"github.com/a11ytag/pdftag/model"
)

// roleMap reads the StructTreeRoot's /RoleMap dictionary into a plain
// name->name map.
func roleMap(doc *model.Document, treeDict *model.Dict) map[string]string {
	out := map[string]string{}
	rm, ok := doc.DictAt(treeDict, "RoleMap")
	if !ok {
		return out
	}
	for _, k := range rm.Keys() {
		v, ok := rm.Get(k)
		if !ok {
			continue
		}
		if n, ok := doc.Resolve(v).(model.Name); ok {
			out[k] = n.Val
		}
	}
	return out
}

// structureTree walks the StructTreeRoot's /K kids into the report's
// recursive Node shape. The root StructTreeRoot dictionary itself has
// no role; its kids become the report's top-level nodes, wrapped under
// a synthetic root so the report always has a single Structure entry.
func structureTree(doc *model.Document, treeDict *model.Dict) *Node {
	root := &Node{Role: "root"}
	if k, ok := treeDict.Get("K"); ok {
		root.Children = kidValueToNodes(doc, k)
	}
	return root
}

func kidValueToNodes(doc *model.Document, k model.Object) []Node {
	switch v := doc.Resolve(k).(type) {
	case *model.Array:
		var out []Node
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			out = append(out, kidValueToNodes(doc, item)...)
		}
		return out
	case *model.Dict:
		if n, ok := elemToNode(doc, v); ok {
			return []Node{n}
		}
	}
	return nil
}

// elemToNode converts one StructElem dictionary to a report Node. MCR
// and OBJR kids (marked-content and annotation references, not
// sub-elements) are skipped for the tree shape; MCR kids and bare MCID
// integers still supply first_mcid and its page, while has_bbox comes
// from the element's own Layout attribute.
func elemToNode(doc *model.Document, elem *model.Dict) (Node, bool) {
	role, ok := elem.GetName("S")
	if !ok {
		return Node{}, false
	}
	n := Node{Role: role.Val}

	if id, ok := elem.GetString("ID"); ok {
		n.ID = string(id.Bytes)
	}
	if alt, ok := elem.GetString("Alt"); ok {
		n.AltText = string(alt.Bytes)
	}
	if at, ok := elem.GetString("ActualText"); ok {
		n.ActualText = string(at.Bytes)
	}
	if lang, ok := elem.GetString("Lang"); ok {
		n.Language = string(lang.Bytes)
	}
	if a, ok := elem.Get("A"); ok {
		n.Attributes, n.HasBBox = extractAttributes(doc, a)
	}
	if pg, ok := elem.GetRef("Pg"); ok {
		n.Page = pageNumber(doc, pg)
	}

	k, hasK := elem.Get("K")
	n.FirstMCID, n.Page = firstMCID(doc, k, n.Page)
	if hasK {
		n.Children = kidValueToNodes(doc, k)
	}

	return n, true
}

// firstMCID finds the first MCID referenced directly under an element
// (a bare integer kid, attributed to fallbackPage, or an MCR dict's own
// Pg/MCID), without descending into child StructElems.
func firstMCID(doc *model.Document, k model.Object, fallbackPage int) (*int, int) {
	if k == nil {
		return nil, fallbackPage
	}
	switch v := doc.Resolve(k).(type) {
	case *model.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			if mcid, page, ok := mcidOf(doc, item, fallbackPage); ok {
				return &mcid, page
			}
		}
	default:
		if mcid, page, ok := mcidOf(doc, v, fallbackPage); ok {
			return &mcid, page
		}
	}
	return nil, fallbackPage
}

func mcidOf(doc *model.Document, obj model.Object, fallbackPage int) (int, int, bool) {
	switch v := doc.Resolve(obj).(type) {
	case model.Number:
		return v.AsInt(), fallbackPage, true
	case *model.Dict:
		if typ, ok := v.GetName("Type"); ok && typ.Val == "MCR" {
			mcid, ok := v.GetNumber("MCID")
			if !ok {
				return 0, fallbackPage, false
			}
			page := fallbackPage
			if pg, ok := v.GetRef("Pg"); ok {
				page = pageNumber(doc, pg)
			}
			return mcid.AsInt(), page, true
		}
	}
	return 0, fallbackPage, false
}

func pageNumber(doc *model.Document, ref model.Ref) int {
	pages, err := doc.Pages()
	if err != nil {
		return 0
	}
	for i, p := range pages {
		if p == ref {
			return i + 1
		}
	}
	return 0
}

// extractAttributes converts a /A entry (a single attribute dict or an
// array of them) into the report's owner:key -> value map, and reports
// whether a Layout/BBox attribute was present.
func extractAttributes(doc *model.Document, a model.Object) (map[string]any, bool) {
	out := map[string]any{}
	hasBBox := false
	apply := func(d *model.Dict) {
		owner := ""
		if o, ok := d.GetName("O"); ok {
			owner = o.Val
		}
		if owner == "Layout" {
			if _, ok := d.Get("BBox"); ok {
				hasBBox = true
			}
		}
		for _, key := range d.Keys() {
			if key == "O" {
				continue
			}
			v, _ := d.Get(key)
			out[prefixKey(owner, key)] = convertValue(doc, v)
		}
	}

	switch v := doc.Resolve(a).(type) {
	case *model.Dict:
		apply(v)
	case *model.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			if d, ok := doc.Resolve(item).(*model.Dict); ok {
				apply(d)
			}
		}
	}
	if len(out) == 0 {
		return nil, hasBBox
	}
	return out, hasBBox
}

func prefixKey(owner, key string) string {
	if owner == "" {
		return key
	}
	return owner + ":" + key
}

// convertValue recursively converts a PDF primitive into the report's
// value model: name/string -> string, number -> float, boolean ->
// boolean, array -> ordered slice, anything else -> its printable form.
func convertValue(doc *model.Document, obj model.Object) any {
	switch v := doc.Resolve(obj).(type) {
	case model.Name:
		return v.Val
	case model.String:
		return string(v.Bytes)
	case model.Number:
		return v.AsFloat()
	case model.Boolean:
		return bool(v)
	case *model.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			out[i] = convertValue(doc, item)
		}
		return out
	case *model.Dict:
		return fmt.Sprintf("<< %d entries >>", v.Len())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
