package pdb

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// DeviceSQL string encodings. The kind byte selects the layout: two escape
// values introduce length-prefixed long forms, anything else is a short
// ASCII string whose total length (kind byte included) is kind>>1.
const (
	stringKindLongASCII = 0x40
	stringKindLongUTF16 = 0x90
)

var utf16leDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ReadString decodes the DeviceSQL string at the given absolute offset.
//
// Malformed strings decode to "": string payloads are written by the
// exporter after the fixed row head, and a bad offset into the heap is a
// per-row defect, not a structural one. Callers that need strictness check
// the row extent before asking for strings.
func (f *File) ReadString(off int64) string {
	if off < 0 || off >= int64(len(f.data)) {
		return ""
	}
	return decodeDeviceString(f.data[off:])
}

func decodeDeviceString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	kind := b[0]

	switch kind {
	case stringKindLongASCII:
		if len(b) < 4 {
			return ""
		}
		length := int(binary.LittleEndian.Uint16(b[1:]))
		if length < 4 || length > len(b) {
			return ""
		}
		return string(b[4:length])

	case stringKindLongUTF16:
		if len(b) < 4 {
			return ""
		}
		length := int(binary.LittleEndian.Uint16(b[1:]))
		if length < 4 || length > len(b) {
			return ""
		}
		return decodeUTF16LE(b[4:length])

	default:
		// Short ASCII: total length includes the kind byte.
		length := int(kind >> 1)
		if length == 0 || length > len(b) {
			return ""
		}
		return string(b[1:length])
	}
}

func decodeUTF16LE(b []byte) string {
	b = b[:len(b)&^1]
	// Exporters pad with NULs; stop at the terminator.
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	out, err := utf16leDecoder.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(bytes.ToValidUTF8(out, []byte("�")))
}
