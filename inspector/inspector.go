package inspector

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/a11ytag/pdftag/model"
)

// Inspect builds a Report for doc. raw is the document's source bytes,
// hashed and sized for the report's file_hash/file_size fields; it is
// not otherwise read (the in-memory object graph is the source of
// truth for everything else). Per-object failures are contained: a
// malformed sub-structure degrades its own field to zero/empty rather
// than aborting the report.
func Inspect(doc *model.Document, raw []byte) *Report {
	sum := sha256.Sum256(raw)

	r := &Report{
		FileHash: hex.EncodeToString(sum[:]),
		FileSize: len(raw),
		RoleMap:  map[string]string{},
	}

	catalog, ok := doc.Catalog()
	if !ok {
		return r
	}

	r.DocumentInfo = documentInfo(doc, catalog)

	if metaRef, ok := catalog.GetRef("Metadata"); ok {
		if stream, ok := doc.ResolveStream(metaRef); ok {
			encoded := base64.StdEncoding.EncodeToString(model.DecodeStream(stream))
			r.XMP = &encoded
		}
	}

	if treeDict, ok := doc.DictAt(catalog, "StructTreeRoot"); ok {
		r.RoleMap = roleMap(doc, treeDict)
		r.Structure = structureTree(doc, treeDict)
	}

	r.Pages = pageInfos(doc)
	r.Fonts = fontRecords(doc)
	r.Outlines = outlines(doc)
	r.EmbeddedFiles = embeddedFiles(doc, catalog)
	r.OCGs = ocgConfigs(doc, catalog)

	return r
}

func documentInfo(doc *model.Document, catalog *model.Dict) DocumentInfo {
	info := DocumentInfo{PDFVersion: doc.Version, IsEncrypted: doc.Encrypted}

	if _, ok := catalog.Get("StructTreeRoot"); ok {
		info.IsTagged = true
	}
	pages, err := doc.Pages()
	if err == nil {
		info.PageCount = len(pages)
	}
	if lang, ok := catalog.GetString("Lang"); ok {
		info.Language = string(lang.Bytes)
	}
	if vp, ok := doc.DictAt(catalog, "ViewerPreferences"); ok {
		if v, ok := vp.Get("DisplayDocTitle"); ok {
			if b, ok := v.(model.Boolean); ok {
				info.DisplayDocTitle = bool(b)
			}
		}
	}
	if mi, ok := doc.DictAt(catalog, "MarkInfo"); ok {
		if v, ok := mi.Get("Marked"); ok {
			if b, ok := v.(model.Boolean); ok {
				info.MarkInfoMarked = bool(b)
			}
		}
		if v, ok := mi.Get("Suspect"); ok {
			if b, ok := v.(model.Boolean); ok {
				info.SuspectFlag = bool(b)
			}
		}
	}
	if v, ok := doc.Trailer.Get("Info"); ok {
		info.HasInfoDictionary = true
		if infoDict, ok := doc.ResolveDict(v); ok {
			if title, ok := infoDict.GetString("Title"); ok {
				info.Title = string(title.Bytes)
			}
		}
	}
	if treeDict, ok := doc.DictAt(catalog, "StructTreeRoot"); ok {
		if _, ok := treeDict.Get("ParentTree"); ok {
			info.HasStructuralParentTree = true
		}
	}
	if acro, ok := doc.DictAt(catalog, "AcroForm"); ok {
		_, hasXFA := acro.Get("XFA")
		needsRendering, _ := acro.GetBool("NeedsRendering")
		info.HasXFADynamicRender = hasXFA && needsRendering
	}
	if v, ok := doc.Trailer.Get("Encrypt"); ok {
		if encDict, ok := doc.ResolveDict(v); ok {
			if p, ok := encDict.GetNumber("P"); ok {
				perms := decodePermissions(p.AsInt())
				info.EncryptionPermissions = &perms
			}
		}
	}
	return info
}

// decodePermissions unpacks the /Encrypt dictionary's P bit field
// (PDF32000 Table 22) into named booleans.
func decodePermissions(p int) Permissions {
	has := func(bit uint) bool { return p&(1<<(bit-1)) != 0 }
	return Permissions{
		Print:             has(3),
		Modify:            has(4),
		Copy:              has(5),
		ModifyAnnotations: has(6),
		FillForms:         has(9),
		ExtractAccessible: has(10),
		Assemble:          has(11),
		PrintHighQuality:  has(12),
	}
}

func embeddedFiles(doc *model.Document, catalog *model.Dict) []EmbeddedFile {
	var out []EmbeddedFile
	names, ok := doc.DictAt(catalog, "Names")
	if !ok {
		return out
	}
	efRoot, ok := doc.DictAt(names, "EmbeddedFiles")
	if !ok {
		return out
	}
	arr, ok := doc.ArrayAt(efRoot, "Names")
	if !ok {
		return out
	}
	for i := 1; i < arr.Len(); i += 2 {
		obj, _ := arr.Get(i)
		spec, ok := doc.ResolveDict(obj)
		if !ok {
			continue
		}
		_, hasF := spec.Get("F")
		_, hasUF := spec.Get("UF")
		out = append(out, EmbeddedFile{HasF: hasF, HasUF: hasUF})
	}
	return out
}

func ocgConfigs(doc *model.Document, catalog *model.Dict) []OCGConfig {
	var out []OCGConfig
	props, ok := doc.DictAt(catalog, "OCProperties")
	if !ok {
		return out
	}
	def, ok := doc.DictAt(props, "D")
	if !ok {
		return out
	}
	if name, ok := def.GetString("Name"); ok {
		out = append(out, OCGConfig{Name: string(name.Bytes)})
	}
	return out
}
