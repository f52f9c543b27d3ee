package cmap

import "testing"

func TestWriteThenParseRoundTrips(t *testing.T) {
	mappings := map[int]string{
		0x0041: "A",
		0x0042: "B",
		0x00A9: "©", // copyright sign
	}
	data := Write(mappings)
	got := Parse(data)
	if len(got) != len(mappings) {
		t.Fatalf("expected %d mappings, got %d: %+v", len(mappings), len(got), got)
	}
	for code, want := range mappings {
		if got[code] != want {
			t.Fatalf("code %04X: want %q, got %q", code, want, got[code])
		}
	}
}

func TestParseBfchar(t *testing.T) {
	body := []byte("1 beginbfchar\n<0041> <0042>\nendbfchar\n")
	got := Parse(body)
	if got[0x41] != "B" {
		t.Fatalf("expected code 0x41 -> B, got %q", got[0x41])
	}
}

func TestParseBfrangeSingleDestination(t *testing.T) {
	body := []byte("1 beginbfrange\n<0020> <0022> <0041>\nendbfrange\n")
	got := Parse(body)
	if got[0x20] != "A" || got[0x21] != "B" || got[0x22] != "C" {
		t.Fatalf("expected sequential A/B/C, got %+v", got)
	}
}

func TestParseBfrangeArrayDestination(t *testing.T) {
	body := []byte("1 beginbfrange\n<0020> <0022> [<0041> <0058> <0059>]\nendbfrange\n")
	got := Parse(body)
	if got[0x20] != "A" || got[0x21] != "X" || got[0x22] != "Y" {
		t.Fatalf("expected A/X/Y, got %+v", got)
	}
}

func TestParseMalformedCMapYieldsEmptyMap(t *testing.T) {
	got := Parse([]byte("not a cmap at all"))
	if len(got) != 0 {
		t.Fatalf("expected no mappings from garbage input, got %+v", got)
	}
}

func TestWriteOrdersCodesAscending(t *testing.T) {
	data := Write(map[int]string{0x42: "b", 0x41: "a"})
	s := string(data)
	idxA := indexOf(s, "<0041>")
	idxB := indexOf(s, "<0042>")
	if idxA < 0 || idxB < 0 || idxA > idxB {
		t.Fatalf("expected code 0041 before 0042, got:\n%s", s)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
