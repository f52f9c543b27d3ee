// Package interpreter composes the handlers into the fixed pipeline a
// validated instruction set drives: metadata, structure, content
// tagging, artifacts, annotations, fonts, OCR, bookmarks, each running
// to completion before the next begins. A failure in any stage aborts
// the run; the document is mutated in place, so callers that need
// transactional semantics take their own copy of the input bytes first.
package interpreter

import (
	"context"
	"fmt"

	"github.com/a11ytag/pdftag/annotation"
	"github.com/a11ytag/pdftag/artifact"
	"github.com/a11ytag/pdftag/bbox"
	"github.com/a11ytag/pdftag/diag"
	"github.com/a11ytag/pdftag/font"
	"github.com/a11ytag/pdftag/instructions"
	"github.com/a11ytag/pdftag/model"
	"github.com/a11ytag/pdftag/ocrtag"
	"github.com/a11ytag/pdftag/outline"
	"github.com/a11ytag/pdftag/pdferr"
	"github.com/a11ytag/pdftag/structure"
	"github.com/a11ytag/pdftag/tagging"
)

// Version identifies this implementation in the Processor stamp.
const Version = "pdftag 0.1.0"

// ProjectURL identifies the project in the Processor stamp.
const ProjectURL = "https://github.com/a11ytag/pdftag"

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithLogger supplies a structured logger; the default discards events.
func WithLogger(log diag.Logger) Option {
	return func(in *Interpreter) { in.log = log }
}

// WithFontLookup supplies the glyph-width source the bbox resolver falls
// back to for a font resource that has no /Widths array; codes outside a
// /Widths array's range get a flat default width instead.
func WithFontLookup(lookup bbox.FontLookup) Option {
	return func(in *Interpreter) { in.fontLookup = lookup }
}

// Interpreter holds one field per handler, constructed once and reused;
// no ambient state lives outside the fields below.
type Interpreter struct {
	doc        *model.Document
	log        diag.Logger
	fontLookup bbox.FontLookup

	structure  *structure.Handler
	tagging    *tagging.Handler
	artifact   *artifact.Handler
	font       *font.Handler
	ocr        *ocrtag.Handler
}

// New constructs an Interpreter bound to doc.
func New(doc *model.Document, opts ...Option) *Interpreter {
	in := &Interpreter{doc: doc, log: diag.Nop()}
	for _, opt := range opts {
		opt(in)
	}
	in.structure = structure.New(doc, in.log)
	in.tagging = tagging.New(doc, in.fontLookup)
	in.artifact = artifact.New(doc, in.fontLookup)
	in.font = font.New(doc)
	in.ocr = ocrtag.New(doc)
	return in
}

// Execute runs every stage the instruction set requests, in fixed
// order, then stamps the Processor info entry. Cancellation is checked
// between stages; a cancelled context aborts before the next stage
// starts and nothing already written is rolled back (callers that need
// all-or-nothing semantics operate on a copy of the document). An
// encrypted document is refused with pdferr.Unsupported before any stage
// runs.
func (in *Interpreter) Execute(ctx context.Context, set instructions.Set) error {
	if in.doc.Encrypted {
		return pdferr.Unsupported{Op: "mutate encrypted document"}
	}
	var nodeIndex structure.Index

	stages := []struct {
		name string
		run  func() error
	}{
		{"metadata", func() error { return in.applyMetadata(set.Metadata) }},
		{"structure", func() error {
			if set.Structure == nil {
				return nil
			}
			idx, err := in.structure.Ensure(set.Structure.StripExisting, instructionsToNode(*set.Structure))
			if err != nil {
				return err
			}
			nodeIndex = idx
			return nil
		}},
		{"content_tagging", func() error {
			if len(set.ContentTagging) == 0 {
				return nil
			}
			return in.tagging.Apply(toTaggingEntries(set.ContentTagging), nodeIndex)
		}},
		{"artifacts", func() error {
			if len(set.Artifacts) == 0 {
				return nil
			}
			return in.artifact.Apply(toArtifactEntries(set.Artifacts))
		}},
		{"annotations", func() error { return in.applyAnnotations(set.Annotations, nodeIndex) }},
		{"fonts", func() error { return in.applyFonts(set.Fonts) }},
		{"ocr", func() error {
			if len(set.OCR) == 0 {
				return nil
			}
			return in.ocr.Apply(toOCRRecords(set.OCR))
		}},
		{"bookmarks", func() error { return in.applyBookmarks(set.Bookmarks) }},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return pdferr.Cancelled{}
		}
		in.log.Debug("running stage", diag.String("stage", stage.name))
		if err := stage.run(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
	}

	in.stampProcessor()
	return nil
}

// stampProcessor sets the info dictionary's Processor entry after every
// stage has run successfully.
func (in *Interpreter) stampProcessor() {
	info := in.infoDict()
	info.Set("Processor", model.String{Bytes: []byte(fmt.Sprintf("%s (%s)", Version, ProjectURL))})
}

// infoDict returns the trailer's Info dictionary, creating one (as an
// indirect object, the conventional shape) if absent.
func (in *Interpreter) infoDict() *model.Dict {
	if v, ok := in.doc.Trailer.Get("Info"); ok {
		if dict, ok := in.doc.ResolveDict(v); ok {
			return dict
		}
	}
	dict := model.NewDict()
	ref := in.doc.Add(dict)
	in.doc.Trailer.Set("Info", ref)
	return dict
}
