// Package lexer tokenizes already-extracted content-stream bytes into the
// line-oriented, index-tagged records the bbox resolver and the
// content-tagging/artifact handlers share. It is
// line-oriented by design — the content streams this module writes and
// reads never split an operator across lines — unlike the generalized
// multi-token PDF object lexer in package model, which must handle
// arbitrary object syntax.
package lexer

import (
	"bytes"
	"strings"
)

// Record is one lexed content-stream line, carrying its original text and
// its position in the indexable-operator sequence.
type Record struct {
	Text string
	// OperatorIndex is -1 for pass-through lines, or the 0-based position
	// of this line among the indexable operators (Tj/TJ inside a text
	// block, Do outside one) in stream order.
	OperatorIndex int
}

// Lex tokenizes data into Records, tracking in_text_block across BT/ET
// to decide which lines are indexable. Empty and whitespace-only lines
// are dropped before indexing, so OperatorIndex values are dense.
func Lex(data []byte) []Record {
	lines := strings.Split(string(data), "\n")
	var out []Record
	inTextBlock := false
	nextIndex := 0
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		opIndex := -1
		switch {
		case trimmed == "BT":
			inTextBlock = true
		case trimmed == "ET":
			inTextBlock = false
		case inTextBlock && isTextShowLine(trimmed):
			opIndex = nextIndex
			nextIndex++
		case !inTextBlock && strings.HasSuffix(trimmed, " Do"):
			opIndex = nextIndex
			nextIndex++
		}
		out = append(out, Record{Text: line, OperatorIndex: opIndex})
	}
	return out
}

// isTextShowLine reports whether line is a Tj/TJ text-showing operator
// line: it ends with " Tj" or " TJ" (a bare "Tj"/"TJ" with no
// leading operand is accepted too, matching how the handlers emit
// single-glyph runs).
func isTextShowLine(line string) bool {
	return line == "Tj" || line == "TJ" ||
		strings.HasSuffix(line, " Tj") || strings.HasSuffix(line, " TJ")
}

// Join concatenates a page's content streams into the single buffer the
// bbox resolver and bracket handlers lex, separated by newlines.
func Join(streams [][]byte) []byte {
	return bytes.Join(streams, []byte("\n"))
}
