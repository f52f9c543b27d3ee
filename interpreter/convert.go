package interpreter

import (
	"github.com/a11ytag/pdftag/annotation"
	"github.com/a11ytag/pdftag/artifact"
	"github.com/a11ytag/pdftag/instructions"
	"github.com/a11ytag/pdftag/ocrtag"
	"github.com/a11ytag/pdftag/pdferr"
	"github.com/a11ytag/pdftag/structure"
	"github.com/a11ytag/pdftag/tagging"
)

func instructionsToNode(s instructions.Structure) structure.Node {
	return structure.Node{Role: s.Root, Children: convertStructureNodes(s.Children)}
}

func convertStructureNodes(nodes []instructions.StructureNode) []structure.Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]structure.Node, len(nodes))
	for i, n := range nodes {
		out[i] = convertStructureNode(n)
	}
	return out
}

func convertStructureNode(n instructions.StructureNode) structure.Node {
	var bbox *structure.BBox
	if n.BBox != nil {
		bbox = &structure.BBox{X: n.BBox.X, Y: n.BBox.Y, Width: n.BBox.Width, Height: n.BBox.Height}
	}
	attrs := make([]structure.Attribute, len(n.Attributes))
	for i, a := range n.Attributes {
		attrs[i] = structure.Attribute{Owner: a.Owner, Key: a.Key, Value: a.Value}
	}
	return structure.Node{
		ID:         n.ID,
		Role:       n.Role,
		Language:   n.Language,
		AltText:    n.AltText,
		ActualText: n.ActualText,
		ElementID:  n.ElementID,
		BBox:       bbox,
		Scope:      n.Scope,
		ColSpan:    n.ColSpan,
		RowSpan:    n.RowSpan,
		Attributes: attrs,
		Children:   convertStructureNodes(n.Children),
	}
}

func toTaggingEntries(entries []instructions.ContentTagging) []tagging.Entry {
	out := make([]tagging.Entry, len(entries))
	for i, e := range entries {
		out[i] = tagging.Entry{Node: e.Node, Page: e.Page, BBox: e.BBox}
	}
	return out
}

func toArtifactEntries(entries []instructions.Artifact) []artifact.Entry {
	out := make([]artifact.Entry, len(entries))
	for i, e := range entries {
		out[i] = artifact.Entry{Type: e.Type, Page: e.Page, BBox: e.BBox}
	}
	return out
}

func toOCRRecords(records []instructions.OCR) []ocrtag.Record {
	out := make([]ocrtag.Record, len(records))
	for i, r := range records {
		words := make([]ocrtag.Word, len(r.Words))
		for j, w := range r.Words {
			words[j] = ocrtag.Word{Text: w.Text, BBox: w.BBox}
		}
		out[i] = ocrtag.Record{Page: r.Page, Words: words}
	}
	return out
}

// applyAnnotations dispatches each annotation instruction to the
// annotation package's matching operation.
func (in *Interpreter) applyAnnotations(entries []instructions.Annotation, idx structure.Index) error {
	for _, e := range entries {
		var err error
		switch e.Op {
		case instructions.OpSetContents:
			err = annotation.SetContents(in.doc, e.Page, e.Index, e.Value)
		case instructions.OpSetTU:
			err = annotation.SetTU(in.doc, e.Page, e.Index, e.Value)
		case instructions.OpAssociate:
			err = annotation.Associate(in.doc, e.Page, e.Index, e.Node, idx)
		case instructions.OpCreateWidget:
			spec := annotation.WidgetSpec{
				Page:      e.Page,
				FieldName: e.FieldName,
				FieldType: e.FieldType,
				TU:        e.TU,
			}
			if e.Rect != nil {
				spec.X, spec.Y, spec.W, spec.H = e.Rect.X, e.Rect.Y, e.Rect.Width, e.Rect.Height
			}
			err = annotation.CreateWidget(in.doc, spec)
		default:
			err = pdferr.ValidationFailure{Message: "unknown annotation operation: " + string(e.Op)}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyFonts dispatches each font instruction to the font handler's
// matching operation.
func (in *Interpreter) applyFonts(entries []instructions.Font) error {
	for _, e := range entries {
		var err error
		switch e.Op {
		case instructions.OpWriteCIDSet:
			err = in.font.WriteCIDSet(e.Page, e.FontKey, e.CIDs)
		case instructions.OpWriteCharSet:
			err = in.font.WriteCharSet(e.Page, e.FontKey, e.GlyphNames)
		case instructions.OpSetEncoding:
			err = in.font.SetEncoding(e.Page, e.FontKey, e.Encoding)
		case instructions.OpSetDifferences:
			err = in.font.SetDifferences(e.Page, e.FontKey, e.Differences)
		case instructions.OpWriteToUnicode:
			err = in.font.WriteToUnicode(e.Page, e.FontKey, e.Mappings)
		case instructions.OpSetWidths:
			err = in.font.SetWidths(e.Page, e.FontKey, e.Widths)
		case instructions.OpAddFontDescriptor:
			err = in.font.AddFontDescriptor(e.Page, e.FontKey)
		default:
			err = pdferr.ValidationFailure{Message: "unknown font operation: " + string(e.Op)}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
