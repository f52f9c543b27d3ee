// Package cmap reads and writes ToUnicode CMap streams: the bfchar/
// bfrange character-code-to-Unicode-string mapping PDF fonts carry for
// text extraction.
package cmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Mapping is a single character code's decoded Unicode string.
type Mapping struct {
	Code int
	Text string
}

// Parse reads a CMap stream body and returns every bfchar/bfrange
// mapping it defines, in the order bfchar/bfrange blocks fold into the
// map (later blocks overwrite earlier ones for the same code). Malformed
// constructs are skipped rather than failing the whole parse: an
// unparseable CMap degrades to whatever mappings it could extract.
func Parse(data []byte) map[int]string {
	out := make(map[int]string)
	toks := tokenize(string(data))

	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "beginbfchar":
			j := i + 1
			for j+1 < len(toks) && toks[j] != "endbfchar" {
				srcTok, dstTok := toks[j], toks[j+1]
				if code, ok := parseHexCode(srcTok); ok {
					if text, ok := decodeUTF16HexString(dstTok); ok {
						out[code] = text
					}
				}
				j += 2
			}
			i = j
		case "beginbfrange":
			j := i + 1
			for j+2 < len(toks) && toks[j] != "endbfrange" {
				startTok, endTok, dstTok := toks[j], toks[j+1], toks[j+2]
				start, ok1 := parseHexCode(startTok)
				end, ok2 := parseHexCode(endTok)
				if ok1 && ok2 && end >= start {
					if strings.HasPrefix(dstTok, "[") {
						// Array form: one destination per code, in order.
						// Already split into separate tokens by tokenize.
						j += 3
						for c := start; c <= end && j < len(toks) && toks[j] != "]"; c++ {
							if text, ok := decodeUTF16HexString(toks[j]); ok {
								out[c] = text
							}
							j++
						}
						if j < len(toks) && toks[j] == "]" {
							j++
						}
						continue
					}
					if base, ok := decodeUTF16Codepoints(dstTok); ok {
						for c := start; c <= end; c++ {
							out[c] = appendOffset(base, c-start)
						}
					}
				}
				j += 3
			}
			i = j
		}
	}
	return out
}

// appendOffset adds delta to the last rune of base's decoded rune
// sequence, matching bfrange's "dst + (code - start)" rule.
func appendOffset(base string, delta int) string {
	if delta == 0 {
		return base
	}
	r := []rune(base)
	if len(r) == 0 {
		return base
	}
	r[len(r)-1] += rune(delta)
	return string(r)
}

func parseHexCode(tok string) (int, bool) {
	h := strings.Trim(tok, "<>")
	if h == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(h, 16, 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func decodeUTF16HexString(tok string) (string, bool) {
	h := strings.Trim(tok, "<>")
	if len(h)%4 != 0 || h == "" {
		return "", false
	}
	var units []uint16
	for i := 0; i < len(h); i += 4 {
		v, err := strconv.ParseUint(h[i:i+4], 16, 32)
		if err != nil {
			return "", false
		}
		units = append(units, uint16(v))
	}
	return string(utf16.Decode(units)), true
}

// decodeUTF16Codepoints is identical to decodeUTF16HexString; kept as a
// distinct name at the bfrange call site for readability.
func decodeUTF16Codepoints(tok string) (string, bool) { return decodeUTF16HexString(tok) }

// tokenize splits a CMap body into whitespace-separated tokens, keeping
// hex strings <...> intact and splitting array brackets [ ] off as their
// own tokens.
func tokenize(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\n' || s[i] == '\r' || s[i] == '\t':
			i++
		case s[i] == '<':
			j := strings.IndexByte(s[i:], '>')
			if j < 0 {
				i = len(s)
				break
			}
			toks = append(toks, s[i:i+j+1])
			i += j + 1
		case s[i] == '[' || s[i] == ']':
			toks = append(toks, string(s[i]))
			i++
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\n' && s[j] != '\r' && s[j] != '\t' && s[j] != '[' && s[j] != ']' {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

// Write emits a ToUnicode CMap stream body for mappings (which need not
// be pre-sorted): the standard Adobe-Identity-UCS preamble, one
// beginbfchar/endbfchar block listing every mapping in ascending code
// order, and the standard trailer.
func Write(mappings map[int]string) []byte {
	codes := make([]int, 0, len(mappings))
	for c := range mappings {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	var b strings.Builder
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\n")
	b.WriteString("begincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	b.WriteString("/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n")
	b.WriteString("<0000> <FFFF>\n")
	b.WriteString("endcodespacerange\n")
	if len(codes) > 0 {
		fmt.Fprintf(&b, "%d beginbfchar\n", len(codes))
		for _, c := range codes {
			fmt.Fprintf(&b, "<%04X> <%s>\n", c, encodeUTF16Hex(mappings[c]))
		}
		b.WriteString("endbfchar\n")
	}
	b.WriteString("endcmap\n")
	b.WriteString("CMapName currentdict /CMap defineresource pop\n")
	b.WriteString("end\n")
	b.WriteString("end\n")
	return []byte(b.String())
}

func encodeUTF16Hex(s string) string {
	units := utf16.Encode([]rune(s))
	var b strings.Builder
	for _, u := range units {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
