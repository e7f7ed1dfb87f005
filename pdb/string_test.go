package pdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func shortASCII(s string) []byte {
	b := append([]byte{byte((len(s) + 1) << 1)}, s...)
	return b
}

func longHeader(kind byte, payload []byte) []byte {
	b := make([]byte, 4+len(payload))
	b[0] = kind
	binary.LittleEndian.PutUint16(b[1:], uint16(len(b)))
	copy(b[4:], payload)
	return b
}

func TestDecodeDeviceString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{
			name: "short ascii",
			in:   shortASCII("Detroit"),
			want: "Detroit",
		},
		{
			name: "short ascii empty",
			in:   shortASCII(""),
			want: "",
		},
		{
			name: "long ascii",
			in:   longHeader(0x40, []byte("A Number of Names")),
			want: "A Number of Names",
		},
		{
			name: "long utf16",
			in:   longHeader(0x90, []byte{0xc6, 0x30, 0xaf, 0x30, 0xce, 0x30}), // テクノ
			want: "テクノ",
		},
		{
			name: "long utf16 stops at nul padding",
			in:   longHeader(0x90, []byte{'O', 0, 'K', 0, 0, 0, 'x', 0}),
			want: "OK",
		},
		{
			name: "empty input",
			in:   nil,
			want: "",
		},
		{
			name: "zero kind byte",
			in:   []byte{0},
			want: "",
		},
		{
			name: "short length exceeds buffer",
			in:   []byte{0xfe, 'h', 'i'},
			want: "",
		},
		{
			name: "long length exceeds buffer",
			in:   []byte{0x40, 0xff, 0xff, 0, 'x'},
			want: "",
		},
		{
			name: "long header cut short",
			in:   []byte{0x40, 0x08},
			want: "",
		},
		{
			name: "long length below header size",
			in:   longHeader(0x40, nil)[:4],
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeDeviceString(tt.in))
		})
	}
}

func TestReadStringBounds(t *testing.T) {
	f := &File{data: shortASCII("ok")}

	assert.Equal(t, "ok", f.ReadString(0))
	assert.Equal(t, "", f.ReadString(-1))
	assert.Equal(t, "", f.ReadString(int64(len(f.data))))
}
