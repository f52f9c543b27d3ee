// Package bbox replays a page's lexed content stream, tracking a CTM
// stack and running text matrix the way a graphics-state tracer does,
// and computes the axis-aligned screen-space bounding rectangle of every
// indexable event from exact per-event baseline/CTM-scale formulas
// rather than a 4-corner unit-square approximation.
package bbox

import (
	"strconv"
	"strings"

	"github.com/a11ytag/pdftag/coords"
	"github.com/a11ytag/pdftag/lexer"
)

// FontWidths looks up a glyph code's advance width in glyph-space units
// (1000 units per em), returning a default when the code has no entry.
type FontWidths interface {
	Width(code byte) int
}

// DefaultWidths is a FontWidths that always reports the same advance,
// used when a page's font resource could not be resolved.
type DefaultWidths int

func (d DefaultWidths) Width(byte) int { return int(d) }

// FontLookup resolves a resource name (the operand of Tf) to its widths.
type FontLookup func(name string) (FontWidths, bool)

// Match pairs an indexable operator's stream index with its resolved
// bounding rectangle.
type Match struct {
	OperatorIndex int
	Rect          coords.Rect
}

type graphicsState struct {
	ctm   coords.Matrix
	stack []coords.Matrix
}

func (g *graphicsState) save()    { g.stack = append(g.stack, g.ctm) }
func (g *graphicsState) restore() {
	if n := len(g.stack); n > 0 {
		g.ctm = g.stack[n-1]
		g.stack = g.stack[:n-1]
	}
}

type textState struct {
	matrix     coords.Matrix
	lineMatrix coords.Matrix
	fontSize   float64
	widths     FontWidths
}

// Resolve replays recs, computing the bounding rectangle for every
// indexable event (OperatorIndex >= 0) and returning those whose
// tolerance-inflated rectangle intersects target, in increasing operator
// index order. lookupFont resolves a Tf operand's resource name to glyph
// widths; a nil lookupFont falls back to a flat 500/1000-em default.
func Resolve(recs []lexer.Record, lookupFont FontLookup, target coords.Rect, tolerance float64) []Match {
	target = target.Normalized().Inflate(tolerance)

	gs := &graphicsState{ctm: coords.Identity()}
	ts := &textState{matrix: coords.Identity(), lineMatrix: coords.Identity(), widths: DefaultWidths(500)}
	inTextBlock := false

	var matches []Match
	for _, rec := range recs {
		op, operands := splitOperator(rec.Text)
		switch op {
		case "q":
			gs.save()
		case "Q":
			gs.restore()
		case "cm":
			if m, ok := parseMatrix(operands); ok {
				gs.ctm = m.Multiply(gs.ctm)
			}
		case "BT":
			inTextBlock = true
			ts.matrix = coords.Identity()
			ts.lineMatrix = coords.Identity()
		case "ET":
			inTextBlock = false
		case "Tf":
			if len(operands) == 2 {
				if size, err := strconv.ParseFloat(operands[1], 64); err == nil {
					ts.fontSize = size
				}
				name := strings.TrimPrefix(operands[0], "/")
				if lookupFont != nil {
					if w, ok := lookupFont(name); ok {
						ts.widths = w
					}
				}
			}
		case "Tm":
			if m, ok := parseMatrix(operands); ok {
				ts.lineMatrix = m
				ts.matrix = m
			}
		case "Td":
			if len(operands) == 2 {
				tx, _ := strconv.ParseFloat(operands[0], 64)
				ty, _ := strconv.ParseFloat(operands[1], 64)
				ts.lineMatrix = coords.Translate(tx, ty).Multiply(ts.lineMatrix)
				ts.matrix = ts.lineMatrix
			}
		}

		if rec.OperatorIndex < 0 {
			continue
		}

		var rect coords.Rect
		switch {
		case inTextBlock && (op == "Tj" || strings.HasSuffix(rec.Text, " Tj")):
			glyphUnits := textWidth(stringOperand(rec.Text), ts.widths)
			rect = textRect(glyphUnits/1000.0*ts.fontSize, ts, gs.ctm)
		case inTextBlock && (op == "TJ" || strings.HasSuffix(rec.Text, " TJ")):
			glyphUnits := tjWidth(arrayOperand(rec.Text), ts.widths)
			rect = textRect(glyphUnits/1000.0*ts.fontSize, ts, gs.ctm)
		case !inTextBlock && strings.HasSuffix(strings.TrimSpace(rec.Text), " Do"):
			rect = imageRect(gs.ctm)
		default:
			continue
		}
		if rect.Normalized().Intersects(target) {
			matches = append(matches, Match{OperatorIndex: rec.OperatorIndex, Rect: rect.Normalized()})
		}
	}
	return matches
}

// textRect implements the text-event formula: (x,y) is the baseline
// start point; width is the baseline end x minus start x; height is the
// ascent-line start y minus baseline start y (ascent approximated as the
// current font size in text space).
func textRect(width float64, ts *textState, ctm coords.Matrix) coords.Rect {
	m := ts.matrix.Multiply(ctm)
	start := m.Transform(coords.Point{X: 0, Y: 0})
	end := m.Transform(coords.Point{X: width, Y: 0})
	ascent := m.Transform(coords.Point{X: 0, Y: ts.fontSize})
	return coords.Rect{
		X:      start.X,
		Y:      start.Y,
		Width:  end.X - start.X,
		Height: ascent.Y - start.Y,
	}
}

// imageRect implements the image-event formula: (x,y) is the CTM's
// translation; width/height are the CTM's scale components ([0,0] and
// [1,1]), ignoring shear and rotation.
func imageRect(ctm coords.Matrix) coords.Rect {
	return coords.Rect{X: ctm[4], Y: ctm[5], Width: ctm[0], Height: ctm[3]}
}

func textWidth(s string, widths FontWidths) float64 {
	total := 0
	for i := 0; i < len(s); i++ {
		total += widths.Width(s[i])
	}
	return float64(total)
}

// tjWidth sums a TJ array's string glyph widths (in glyph-space units,
// 1000 per em), subtracting each numeric kerning adjustment (expressed in
// the same units, per PDF's TJ operator convention).
func tjWidth(items []tjItem, widths FontWidths) float64 {
	total := 0.0
	for _, it := range items {
		if it.isString {
			total += textWidth(it.str, widths)
		} else {
			total -= it.num
		}
	}
	return total
}

type tjItem struct {
	isString bool
	str      string
	num      float64
}

// splitOperator returns a content-stream line's trailing operator token
// and its leading operand tokens (a naive whitespace split suffices
// since the lexer already guarantees one operator per line and strings
// never contain unescaped whitespace-adjacent delimiters in the inputs
// this module produces).
func splitOperator(line string) (op string, operands []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[len(fields)-1], fields[:len(fields)-1]
}

func parseMatrix(operands []string) (coords.Matrix, bool) {
	if len(operands) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i, s := range operands {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return coords.Matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

// stringOperand extracts a Tj line's literal string payload, e.g.
// "(Hello) Tj" -> "Hello".
func stringOperand(line string) string {
	start := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if start < 0 || end <= start {
		return ""
	}
	return unescapeLiteral(line[start+1 : end])
}

func unescapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// arrayOperand extracts a TJ line's "[...]" array into alternating string
// and numeric adjustment items, in order.
func arrayOperand(line string) []tjItem {
	start := strings.IndexByte(line, '[')
	end := strings.LastIndexByte(line, ']')
	if start < 0 || end <= start {
		return nil
	}
	body := line[start+1 : end]
	var items []tjItem
	for i := 0; i < len(body); {
		switch {
		case body[i] == '(':
			j := i + 1
			for j < len(body) && body[j] != ')' {
				if body[j] == '\\' {
					j++
				}
				j++
			}
			items = append(items, tjItem{isString: true, str: unescapeLiteral(body[i+1 : j])})
			i = j + 1
		case body[i] == ' ':
			i++
		default:
			j := i
			for j < len(body) && body[j] != ' ' && body[j] != '(' {
				j++
			}
			if n, err := strconv.ParseFloat(strings.TrimSpace(body[i:j]), 64); err == nil {
				items = append(items, tjItem{num: n})
			}
			i = j
		}
	}
	return items
}
