// Package instructions defines the already-validated instruction-set
// tree the interpreter consumes: one field per handler, each already
// checked for shape by the caller before it reaches this module.
package instructions

import "github.com/a11ytag/pdftag/coords"

// TabOrder is a page /Tabs value, spelled the way a caller names it.
type TabOrder string

const (
	TabStructure TabOrder = "structure"
	TabRow       TabOrder = "row"
	TabColumn    TabOrder = "column"
	TabUnordered TabOrder = "unordered"
)

// PDFTabsValue maps a TabOrder to the page dictionary's /Tabs name.
func (t TabOrder) PDFTabsValue() string {
	switch t {
	case TabStructure:
		return "S"
	case TabRow:
		return "R"
	case TabColumn:
		return "C"
	case TabUnordered:
		return "W"
	default:
		return ""
	}
}

// Metadata carries document-level metadata instructions.
type Metadata struct {
	Language        string   `json:"language,omitempty"`
	Title           string   `json:"title,omitempty"`
	DisplayDocTitle bool     `json:"display_doc_title,omitempty"`
	MarkInfo        bool     `json:"mark_info,omitempty"`
	PDFUAIdentifier int      `json:"pdf_ua_identifier,omitempty"`
	TabOrder        TabOrder `json:"tab_order,omitempty"`
}

// Attribute is one owner-scoped attribute value on a StructureNode.
type Attribute struct {
	Owner string `json:"owner"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StructureNode is one node of the instruction structure tree.
type StructureNode struct {
	ID         string          `json:"id,omitempty"`
	Role       string          `json:"role"`
	Language   string          `json:"language,omitempty"`
	AltText    string          `json:"alt_text,omitempty"`
	ActualText string          `json:"actual_text,omitempty"`
	ElementID  string          `json:"element_id,omitempty"`
	BBox       *coords.Rect    `json:"bbox,omitempty"`
	Scope      string          `json:"scope,omitempty"`
	ColSpan    *int            `json:"col_span,omitempty"`
	RowSpan    *int            `json:"row_span,omitempty"`
	Attributes []Attribute     `json:"attributes,omitempty"`
	Children   []StructureNode `json:"children,omitempty"`
}

// Structure carries the structure-tree-build instruction.
type Structure struct {
	StripExisting bool            `json:"strip_existing,omitempty"`
	Root          string           `json:"root"`
	Children      []StructureNode `json:"children,omitempty"`
}

// ContentTagging is one `{node, page, bbox}` content-tagging entry.
type ContentTagging struct {
	Node string      `json:"node"`
	Page int         `json:"page"`
	BBox coords.Rect `json:"bbox"`
}

// Artifact is one `{type, page, bbox}` artifact entry.
type Artifact struct {
	Type string      `json:"type"`
	Page int         `json:"page"`
	BBox coords.Rect `json:"bbox"`
}

// AnnotationOp names an annotation-handler operation.
type AnnotationOp string

const (
	OpSetContents  AnnotationOp = "set_contents"
	OpSetTU        AnnotationOp = "set_tu"
	OpAssociate    AnnotationOp = "associate"
	OpCreateWidget AnnotationOp = "create_widget"
)

// Annotation is one annotation-handler instruction; fields not relevant
// to Op are left zero.
type Annotation struct {
	Op        AnnotationOp `json:"op"`
	Page      int          `json:"page"`
	Index     int          `json:"index,omitempty"`
	Node      string       `json:"node,omitempty"`
	Value     string       `json:"value,omitempty"`
	FieldName string       `json:"field_name,omitempty"`
	FieldType string       `json:"field_type,omitempty"`
	TU        string       `json:"tu,omitempty"`
	Rect      *coords.Rect `json:"rect,omitempty"`
}

// FontOp names a font-handler operation.
type FontOp string

const (
	OpWriteCIDSet        FontOp = "write_cidset"
	OpWriteCharSet       FontOp = "write_charset"
	OpSetEncoding        FontOp = "set_encoding"
	OpSetDifferences     FontOp = "set_differences"
	OpWriteToUnicode     FontOp = "write_tounicode"
	OpSetWidths          FontOp = "set_widths"
	OpAddFontDescriptor  FontOp = "add_font_descriptor"
)

// Font is one font-handler instruction; only the fields relevant to Op
// are populated.
type Font struct {
	Op          FontOp         `json:"op"`
	FontKey     string         `json:"font"`
	Page        int            `json:"page"`
	CIDs        []int          `json:"cids,omitempty"`
	GlyphNames  []string       `json:"glyph_names,omitempty"`
	Encoding    string         `json:"encoding,omitempty"`
	Differences map[int]string `json:"differences,omitempty"`
	Mappings    map[int]string `json:"mappings,omitempty"`
	Widths      map[int]int    `json:"widths,omitempty"`
}

// OCRWord is one recognized word with its page-space bbox.
type OCRWord struct {
	Text string      `json:"text"`
	BBox coords.Rect `json:"bbox"`
}

// OCR is one page's OCR result.
type OCR struct {
	Page  int       `json:"page"`
	Words []OCRWord `json:"words"`
}

// Bookmarks activates heading-derived outline generation.
type Bookmarks struct {
	GenerateFromHeadings bool `json:"generate_from_headings"`
}

// Set bundles every handler's instructions for one interpreter run.
type Set struct {
	Metadata       *Metadata        `json:"metadata,omitempty"`
	Structure      *Structure       `json:"structure,omitempty"`
	ContentTagging []ContentTagging `json:"content_tagging,omitempty"`
	Artifacts      []Artifact       `json:"artifacts,omitempty"`
	Annotations    []Annotation     `json:"annotations,omitempty"`
	Fonts          []Font           `json:"fonts,omitempty"`
	OCR            []OCR            `json:"ocr,omitempty"`
	Bookmarks      Bookmarks        `json:"bookmarks,omitempty"`
}
