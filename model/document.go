package model

import "fmt"

func (Ref) Kind() string { return "ref" }

// DocumentInfo mirrors the PDF trailer's /Info dictionary fields that the
// Inspector and metadata handler care about.
type DocumentInfo struct {
	Title, Author, Subject, Creator, Producer string
	Keywords                                  []string
}

// Permissions mirrors the /Encrypt dictionary's P bit field, decoded into
// booleans for the Inspector's encryption_permissions field.
type Permissions struct {
	Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool
}

// Document is the in-memory PDF object graph: an arena of indirect objects
// plus the handful of trailer-level facts every handler needs (catalog
// location, version, encryption state). The document owns all objects;
// references between them may cycle (page tree parent/child, struct
// element <-> page), so traversals guard with Ref equality rather than
// following owning pointers.
type Document struct {
	Objects map[Ref]Object
	Trailer *Dict
	// CatalogRef is the document catalog's indirect reference, resolved
	// from the trailer's /Root entry (or recovered by scanning for a
	// /Type /Catalog dictionary if the trailer is missing/damaged).
	CatalogRef Ref
	Version    string

	Encrypted bool

	nextObjNum int
}

// NewDocument returns an empty document with a freshly allocated catalog.
func NewDocument() *Document {
	doc := &Document{
		Objects: make(map[Ref]Object),
		Version: "1.7",
	}
	catalog := NewDict()
	catalog.Set("Type", NewName("Catalog"))
	ref := doc.Add(catalog)
	doc.CatalogRef = ref
	pages := NewDict()
	pages.Set("Type", NewName("Pages"))
	pages.Set("Kids", NewArray())
	pages.Set("Count", Int(0))
	pagesRef := doc.Add(pages)
	catalog.Set("Pages", pagesRef)
	trailer := NewDict()
	trailer.Set("Root", ref)
	doc.Trailer = trailer
	return doc
}

// Add allocates a fresh object number and stores obj under it, returning
// the new indirect reference. This is the sole allocator for new indirect
// objects; existing objects keep their original numbers when the document
// is rewritten: writes preserve object identity where possible.
func (d *Document) Add(obj Object) Ref {
	if d.nextObjNum == 0 {
		d.nextObjNum = 1 // object number 0 is reserved for the xref free-list head
		for r := range d.Objects {
			if r.Num >= d.nextObjNum {
				d.nextObjNum = r.Num + 1
			}
		}
	}
	d.nextObjNum++
	ref := Ref{Num: d.nextObjNum - 1, Gen: 0}
	d.Objects[ref] = obj
	return ref
}

// Resolve follows an indirect reference to its object, or returns obj
// unchanged if it is not a reference. Cyclic graphs are safe here because
// Resolve only ever looks up one hop.
func (d *Document) Resolve(obj Object) Object {
	if ref, ok := obj.(Ref); ok {
		if v, ok := d.Objects[ref]; ok {
			return v
		}
		return Null{}
	}
	return obj
}

// ResolveDict resolves obj and type-asserts it to *Dict (also accepting a
// *Stream, returning its dictionary, since many PDF constructs allow
// either).
func (d *Document) ResolveDict(obj Object) (*Dict, bool) {
	v := d.Resolve(obj)
	switch t := v.(type) {
	case *Dict:
		return t, true
	case *Stream:
		return t.Dict, true
	}
	return nil, false
}

func (d *Document) ResolveArray(obj Object) (*Array, bool) {
	v, ok := d.Resolve(obj).(*Array)
	return v, ok
}

func (d *Document) ResolveStream(obj Object) (*Stream, bool) {
	v, ok := d.Resolve(obj).(*Stream)
	return v, ok
}

// Catalog returns the document's catalog dictionary.
func (d *Document) Catalog() (*Dict, bool) {
	return d.ResolveDict(d.CatalogRef)
}

// DictAt resolves a dict field's child dict directly from a parent dict key.
func (d *Document) DictAt(parent *Dict, key string) (*Dict, bool) {
	v, ok := parent.Get(key)
	if !ok {
		return nil, false
	}
	return d.ResolveDict(v)
}

// ArrayAt resolves an array field.
func (d *Document) ArrayAt(parent *Dict, key string) (*Array, bool) {
	v, ok := parent.Get(key)
	if !ok {
		return nil, false
	}
	return d.ResolveArray(v)
}

// Pages enumerates the document's pages in document order by walking the
// catalog's /Pages tree, flattening /Kids recursively. Cycles (a page-tree
// node listed as its own ancestor) are guarded against with a visited set
// keyed by Ref so a malformed document cannot spin forever.
func (d *Document) Pages() ([]Ref, error) {
	catalog, ok := d.Catalog()
	if !ok {
		return nil, fmt.Errorf("model: catalog %s not found", d.CatalogRef)
	}
	rootRef, _ := catalog.Get("Pages")
	var out []Ref
	visited := make(map[Ref]bool)
	var walk func(node Object) error
	walk = func(node Object) error {
		ref, isRef := node.(Ref)
		if isRef {
			if visited[ref] {
				return nil
			}
			visited[ref] = true
		}
		dict, ok := d.ResolveDict(node)
		if !ok {
			return fmt.Errorf("model: page tree node is not a dictionary")
		}
		typ, _ := dict.GetName("Type")
		if typ.Val == "Page" {
			if isRef {
				out = append(out, ref)
			}
			return nil
		}
		kids, _ := d.ArrayAt(dict, "Kids")
		for _, kid := range kids.Items {
			if err := walk(kid); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootRef); err != nil {
		return nil, err
	}
	return out, nil
}

// PageDict resolves a page reference to its dictionary.
func (d *Document) PageDict(ref Ref) (*Dict, bool) {
	return d.ResolveDict(ref)
}

// inheritedValue reads an attribute from page, falling back to its
// ancestors via /Parent (MediaBox, Resources, etc. are inheritable per the
// PDF page-tree model).
func (d *Document) inheritedValue(page *Dict, key string) (Object, bool) {
	seen := make(map[*Dict]bool)
	cur := page
	for cur != nil && !seen[cur] {
		seen[cur] = true
		if v, ok := cur.Get(key); ok {
			return v, true
		}
		parentRef, ok := cur.Get("Parent")
		if !ok {
			break
		}
		cur, ok = d.ResolveDict(parentRef)
		if !ok {
			break
		}
	}
	return nil, false
}

// MediaBox returns a page's media box, resolving inheritance.
func (d *Document) MediaBox(page *Dict) (x, y, w, h float64, ok bool) {
	v, found := d.inheritedValue(page, "MediaBox")
	if !found {
		return 0, 0, 612, 792, false
	}
	arr, isArr := d.Resolve(v).(*Array)
	if !isArr || arr.Len() != 4 {
		return 0, 0, 612, 792, false
	}
	nums := make([]float64, 4)
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		n, isNum := d.Resolve(item).(Number)
		if !isNum {
			return 0, 0, 612, 792, false
		}
		nums[i] = n.AsFloat()
	}
	return nums[0], nums[1], nums[2] - nums[0], nums[3] - nums[1], true
}

// Resources returns a page's resources dictionary, resolving inheritance.
func (d *Document) Resources(page *Dict) (*Dict, bool) {
	v, ok := d.inheritedValue(page, "Resources")
	if !ok {
		return nil, false
	}
	return d.ResolveDict(v)
}

// ContentStreams returns the page's content streams in order: a page's
// /Contents may be a single stream reference or an array of them.
func (d *Document) ContentStreams(page *Dict) []*Stream {
	v, ok := page.Get("Contents")
	if !ok {
		return nil
	}
	resolved := d.Resolve(v)
	if s, ok := resolved.(*Stream); ok {
		return []*Stream{s}
	}
	if arr, ok := resolved.(*Array); ok {
		var out []*Stream
		for _, item := range arr.Items {
			if s, ok := d.ResolveStream(item); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SetContentStreams replaces the page's content streams with exactly one
// stream: write the new bytes into the first stream and empty all
// subsequent streams; if the page had no streams, insert one before the
// existing position.
func (d *Document) SetContentStreams(page *Dict, streams []*Stream) {
	existing := d.ContentStreams(page)
	if len(existing) == 0 {
		ref := d.Add(streams[0])
		page.Set("Contents", ref)
		return
	}
	v, _ := page.Get("Contents")
	if arr, ok := d.Resolve(v).(*Array); ok {
		for i, item := range arr.Items {
			ref, isRef := item.(Ref)
			if !isRef {
				continue
			}
			if i < len(streams) {
				d.Objects[ref] = streams[i]
			} else {
				d.Objects[ref] = NewStream(NewDict(), nil)
			}
		}
		return
	}
	if ref, ok := v.(Ref); ok {
		d.Objects[ref] = streams[0]
	}
}

// AppendContentStream adds a new content stream after a page's existing
// ones (used by OCR text injection, which must preserve visible
// content).
func (d *Document) AppendContentStream(page *Dict, s *Stream) {
	ref := d.Add(s)
	v, ok := page.Get("Contents")
	if !ok {
		page.Set("Contents", ref)
		return
	}
	if arr, ok := d.Resolve(v).(*Array); ok {
		arr.Append(ref)
		return
	}
	if existingRef, ok := v.(Ref); ok {
		arr := NewArray(existingRef, ref)
		page.Set("Contents", arr)
		return
	}
}
