// Package inspector produces a read-only accessibility report over a
// document: document-level facts, the structure tree, per-page info,
// deduplicated font records, outlines, embedded-file markers, and
// optional-content group summaries. It never mutates the document.
package inspector

// Report is the top-level inspection result.
type Report struct {
	FileHash      string        `json:"file_hash"`
	FileSize      int           `json:"file_size"`
	DocumentInfo  DocumentInfo  `json:"document_info"`
	XMP           *string       `json:"xmp_metadata,omitempty"`
	Structure     *Node         `json:"structure,omitempty"`
	RoleMap       map[string]string `json:"role_map"`
	Pages         []PageInfo    `json:"pages"`
	Fonts         []FontRecord  `json:"fonts"`
	Outlines      []Outline     `json:"outlines"`
	EmbeddedFiles []EmbeddedFile `json:"embedded_files"`
	OCGs          []OCGConfig   `json:"ocgs"`
}

// DocumentInfo carries the document-level accessibility facts: tagging
// state, page count, version, language/title, and encryption status.
type DocumentInfo struct {
	IsTagged                bool   `json:"is_tagged"`
	PageCount               int    `json:"page_count"`
	PDFVersion              string `json:"pdf_version"`
	Language                string `json:"language"`
	Title                   string `json:"title"`
	DisplayDocTitle         bool   `json:"display_doc_title"`
	MarkInfoMarked          bool   `json:"mark_info_marked"`
	SuspectFlag             bool   `json:"suspect_flag"`
	HasInfoDictionary       bool   `json:"has_info_dictionary"`
	IsEncrypted             bool   `json:"is_encrypted"`
	EncryptionPermissions   *Permissions `json:"encryption_permissions,omitempty"`
	HasStructuralParentTree bool   `json:"has_structural_parent_tree"`
	HasXFADynamicRender     bool   `json:"has_xfa_dynamic_render"`
}

// Permissions mirrors the /Encrypt dictionary's decoded P bits.
type Permissions struct {
	Print              bool `json:"print"`
	Modify             bool `json:"modify"`
	Copy               bool `json:"copy"`
	ModifyAnnotations  bool `json:"modify_annotations"`
	FillForms          bool `json:"fill_forms"`
	ExtractAccessible  bool `json:"extract_accessible"`
	Assemble           bool `json:"assemble"`
	PrintHighQuality   bool `json:"print_high_quality"`
}

// Node is one structure-tree element in the report, recursive.
type Node struct {
	Role       string            `json:"role"`
	ID         string            `json:"id,omitempty"`
	AltText    string            `json:"alt_text,omitempty"`
	ActualText string            `json:"actual_text,omitempty"`
	Language   string            `json:"language,omitempty"`
	HasBBox    bool              `json:"has_bbox"`
	Attributes map[string]any    `json:"attributes,omitempty"`
	Page       int               `json:"page,omitempty"`
	FirstMCID  *int              `json:"first_mcid,omitempty"`
	Children   []Node            `json:"children,omitempty"`
}

// PageInfo is the per-page report entry.
type PageInfo struct {
	Page     int     `json:"page"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	TabOrder string  `json:"tab_order,omitempty"`
	Fonts    []string `json:"fonts"`
	MCIDs    []int   `json:"mcids"`
}

// FontRecord is one deduplicated document-level font entry.
type FontRecord struct {
	Name                string         `json:"name"`
	FontType            string         `json:"font_type"`
	IsEmbedded          bool           `json:"is_embedded"`
	IsSymbolic          bool           `json:"is_symbolic"`
	HasToUnicode        bool           `json:"has_to_unicode"`
	HasNotdefGlyph      bool           `json:"has_notdef_glyph"`
	Encoding            string         `json:"encoding,omitempty"`
	HasCharSet          bool           `json:"has_charset"`
	HasCIDSet           bool           `json:"has_cidset"`
	HasFontDescriptor   bool           `json:"has_font_descriptor"`
	CIDSystemInfo       string         `json:"cid_system_info,omitempty"`
	CMapInfo            string         `json:"cmap_info,omitempty"`
	CIDToGIDMap         string         `json:"cid_to_gid_map,omitempty"`
	EncodingDetail      string         `json:"encoding_detail,omitempty"`
	CMapSubtables       []string       `json:"cmap_subtables,omitempty"`
	ToUnicodeMappings   map[int]string `json:"to_unicode_mappings,omitempty"`
	UnmappableCharCodes []int          `json:"unmappable_char_codes,omitempty"`
	Type3Info           string         `json:"type3_info,omitempty"`
	Type1GlyphNames     []string       `json:"type1_glyph_names,omitempty"`
	FontProgramData     string         `json:"font_program_data,omitempty"`
	Pages               []int          `json:"pages"`
}

// Outline is one bookmark-tree entry in the report.
type Outline struct {
	Title    string    `json:"title"`
	Page     int       `json:"page"`
	Children []Outline `json:"children,omitempty"`
}

// EmbeddedFile marks the presence of a file specification's /F and /UF
// keys, without embedding the attachment's own bytes in the report.
type EmbeddedFile struct {
	HasF  bool `json:"has_f"`
	HasUF bool `json:"has_uf"`
}

// OCGConfig summarizes one optional-content group default configuration.
type OCGConfig struct {
	Name string `json:"name"`
}
