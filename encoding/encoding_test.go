package encoding

import "testing"

func TestWinAnsiDecodesAscii(t *testing.T) {
	table := Lookup("WinAnsiEncoding")
	r, ok := table.Decode('A')
	if !ok || r != 'A' {
		t.Fatalf("expected 'A' to decode to 'A', got %q ok=%v", r, ok)
	}
}

func TestWinAnsiDecodesHighByteDifferentlyFromMacRoman(t *testing.T) {
	win := Lookup("WinAnsiEncoding")
	mac := Lookup("MacRomanEncoding")
	const code = 0x80 // euro sign in WinAnsi (cp1252); A-diaeresis in MacRoman
	winR, _ := win.Decode(code)
	macR, _ := mac.Decode(code)
	if winR == macR {
		t.Fatalf("expected WinAnsi and MacRoman to diverge at 0x%02X, both gave %q", code, winR)
	}
}

func TestUnknownEncodingFallsBackToIdentity(t *testing.T) {
	table := Lookup("SomeUnknownEncoding")
	r, ok := table.Decode(0x41)
	if !ok || r != 0x41 {
		t.Fatalf("expected identity fallback, got %q ok=%v", r, ok)
	}
}

// rejectingTable decodes every code to itself except reject, which it
// reports as unmappable.
type rejectingTable struct{ reject byte }

func (t rejectingTable) Decode(code byte) (rune, bool) {
	if code == t.reject {
		return 0, false
	}
	return rune(code), true
}

func TestDecodeStringSkipsUnmappableCodes(t *testing.T) {
	table := rejectingTable{reject: '?'}
	out := DecodeString([]byte("A?B"), table)
	if out != "AB" {
		t.Fatalf("expected AB, got %q", out)
	}
}
