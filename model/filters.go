package model

import (
	"bytes"
	"compress/zlib"
	"io"
)

// hasFilter reports whether dict's /Filter entry names filterName, whether
// /Filter is a bare name or an array of names.
func hasFilter(dict *Dict, filterName string) bool {
	v, ok := dict.Get("Filter")
	if !ok {
		return false
	}
	switch f := v.(type) {
	case Name:
		return f.Val == filterName
	case *Array:
		for _, item := range f.Items {
			if n, ok := item.(Name); ok && n.Val == filterName {
				return true
			}
		}
	}
	return false
}

// DecodeStream returns s's payload with any FlateDecode filter applied.
// Other filters are passed through undecoded (their raw bytes are still
// returned) since this module never renders pixel data; a decode
// failure is contained rather than fatal, returning the raw bytes.
func DecodeStream(s *Stream) []byte {
	if s == nil {
		return nil
	}
	if !hasFilter(s.Dict, "FlateDecode") {
		return s.Data
	}
	r, err := zlib.NewReader(bytes.NewReader(s.Data))
	if err != nil {
		return s.Data
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return s.Data
	}
	return out
}

// EncodeFlate compresses data with zlib/FlateDecode, the filter PDF names
// for the compress/flate-compatible stream format.
func EncodeFlate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

// NewFlateStream builds a stream object whose Data is already
// flate-compressed and whose dictionary advertises /Filter/FlateDecode and
// the correct /Length.
func NewFlateStream(extra *Dict, raw []byte) *Stream {
	if extra == nil {
		extra = NewDict()
	}
	compressed := EncodeFlate(raw)
	extra.Set("Filter", NewName("FlateDecode"))
	extra.Set("Length", Int(int64(len(compressed))))
	return NewStream(extra, compressed)
}
