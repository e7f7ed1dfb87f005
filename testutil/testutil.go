package testutil

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// On-disk layout constants, mirrored from the reader so fixtures stay
// bit-exact.
const (
	headerSize     = 28
	tableEntrySize = 16
	heapStart      = 40
	rowGroupStride = 0x24
	rowsPerGroup   = 16

	// DefaultPageSize matches the page size rekordbox exporters write.
	DefaultPageSize = 4096
)

// DatabaseBuilder assembles a synthetic export database image. Page zero
// holds the file header; table pages are allocated in AddTable order
// starting at page one.
type DatabaseBuilder struct {
	pageSize uint32
	tables   []*tableBuilder
}

type tableBuilder struct {
	pageType uint32
	pages    []*PageBuilder
}

// NewDatabaseBuilder returns a builder with the default page size.
func NewDatabaseBuilder() *DatabaseBuilder {
	return &DatabaseBuilder{pageSize: DefaultPageSize}
}

// WithPageSize overrides the page size declared in the header.
func (b *DatabaseBuilder) WithPageSize(n uint32) *DatabaseBuilder {
	b.pageSize = n
	return b
}

// AddTable appends a table of the given page type with the given page
// chain. At least one page is required.
func (b *DatabaseBuilder) AddTable(pageType uint32, pages ...*PageBuilder) *DatabaseBuilder {
	if len(pages) == 0 {
		panic("testutil: table needs at least one page")
	}
	b.tables = append(b.tables, &tableBuilder{pageType: pageType, pages: pages})
	return b
}

// Bytes renders the image. It panics when a page's rows overflow its
// extent, which is always a fixture bug.
func (b *DatabaseBuilder) Bytes() []byte {
	type placedPage struct {
		index    uint32
		pageType uint32
		next     uint32
		pb       *PageBuilder
	}

	var pages []placedPage
	nextIndex := uint32(1)

	type placedTable struct {
		pageType    uint32
		first, last uint32
	}
	var dir []placedTable

	for _, t := range b.tables {
		first := nextIndex
		for i, p := range t.pages {
			index := nextIndex
			nextIndex++
			next := uint32(0)
			if i < len(t.pages)-1 {
				next = nextIndex
			}
			pages = append(pages, placedPage{index: index, pageType: t.pageType, next: next, pb: p})
		}
		dir = append(dir, placedTable{pageType: t.pageType, first: first, last: nextIndex - 1})
	}

	buf := make([]byte, int(nextIndex)*int(b.pageSize))
	binary.LittleEndian.PutUint32(buf[4:], b.pageSize)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(dir)))
	binary.LittleEndian.PutUint32(buf[12:], nextIndex)
	for i, t := range dir {
		off := headerSize + i*tableEntrySize
		binary.LittleEndian.PutUint32(buf[off:], t.pageType)
		binary.LittleEndian.PutUint32(buf[off+8:], t.first)
		binary.LittleEndian.PutUint32(buf[off+12:], t.last)
	}

	for _, pp := range pages {
		pp.pb.render(buf, int(b.pageSize), pp.index, pp.pageType, pp.next)
	}
	return buf
}

// PageBuilder assembles one page: a heap of rows growing up from the heap
// start and a row directory growing down from the page tail.
type PageBuilder struct {
	flags uint8
	rows  []pageRow
}

type pageRow struct {
	data    []byte
	freed   bool
	fixed   bool
	heapOfs int
}

// NewPage returns an empty data page.
func NewPage() *PageBuilder { return &PageBuilder{} }

// NewNonDataPage returns a page whose flags exclude it from row
// iteration.
func NewNonDataPage() *PageBuilder { return &PageBuilder{flags: 0x40} }

// Row appends an occupied row slot.
func (p *PageBuilder) Row(data []byte) *PageBuilder {
	p.rows = append(p.rows, pageRow{data: data})
	return p
}

// FreedRow appends a slot whose present bit is clear. The data still
// occupies heap space, like a row deleted in place.
func (p *PageBuilder) FreedRow(data []byte) *PageBuilder {
	p.rows = append(p.rows, pageRow{data: data, freed: true})
	return p
}

// RowAt appends an occupied slot with an explicit heap-relative offset,
// for rows that deliberately sit outside the normal heap layout.
func (p *PageBuilder) RowAt(heapOfs int, data []byte) *PageBuilder {
	p.rows = append(p.rows, pageRow{data: data, fixed: true, heapOfs: heapOfs})
	return p
}

func (p *PageBuilder) render(buf []byte, pageSize int, index, pageType, next uint32) {
	base := int(index) * pageSize
	pg := buf[base : base+pageSize]

	binary.LittleEndian.PutUint32(pg[4:], index)
	binary.LittleEndian.PutUint32(pg[8:], pageType)
	binary.LittleEndian.PutUint32(pg[12:], next)

	numSlots := len(p.rows)
	numRows := 0
	for _, r := range p.rows {
		if !r.freed {
			numRows++
		}
	}
	rowInfo := uint32(numSlots)&0x1fff | (uint32(numRows)&0x7ff)<<13 | uint32(p.flags)<<24
	binary.LittleEndian.PutUint32(pg[20:], rowInfo)

	if numSlots == 0 {
		return
	}
	numGroups := (numSlots-1)/rowsPerGroup + 1
	footerStart := pageSize - numGroups*rowGroupStride

	cursor := heapStart
	for slot, r := range p.rows {
		heapOfs := cursor - heapStart
		if r.fixed {
			heapOfs = r.heapOfs
		}

		if len(r.data) > 0 {
			start := heapStart + heapOfs
			if start+len(r.data) > pageSize {
				panic(fmt.Sprintf("testutil: row %d overflows page extent", slot))
			}
			copy(pg[start:], r.data)
		}
		if !r.fixed {
			cursor += (len(r.data) + 1) &^ 1
			if cursor > footerStart {
				panic(fmt.Sprintf("testutil: heap collides with row directory after row %d", slot))
			}
		}

		g := slot / rowsPerGroup
		i := slot % rowsPerGroup
		groupBase := pageSize - g*rowGroupStride
		binary.LittleEndian.PutUint16(pg[groupBase-(6+2*i):], uint16(heapOfs))
	}

	for g := 0; g*rowsPerGroup < numSlots; g++ {
		var present uint16
		for i := 0; i < rowsPerGroup && g*rowsPerGroup+i < numSlots; i++ {
			if !p.rows[g*rowsPerGroup+i].freed {
				present |= 1 << i
			}
		}
		binary.LittleEndian.PutUint16(pg[pageSize-g*rowGroupStride-4:], present)
	}

	binary.LittleEndian.PutUint16(pg[24:], uint16(footerStart-cursor)) // free
	binary.LittleEndian.PutUint16(pg[26:], uint16(cursor-heapStart))   // used
}

// String encodings

var utf16leEncoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ShortASCII encodes s as a short device string. The total length,
// kind byte included, must fit the short form.
func ShortASCII(s string) []byte {
	total := len(s) + 1
	if total > 127 {
		panic("testutil: string too long for short form")
	}
	out := make([]byte, total)
	out[0] = byte(total << 1)
	copy(out[1:], s)
	return out
}

// LongASCII encodes s as a long ASCII device string.
func LongASCII(s string) []byte {
	total := len(s) + 4
	out := make([]byte, total)
	out[0] = 0x40
	binary.LittleEndian.PutUint16(out[1:], uint16(total))
	copy(out[4:], s)
	return out
}

// LongUTF16 encodes s as a long UTF-16LE device string.
func LongUTF16(s string) []byte {
	payload, err := utf16leEncoder.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	total := len(payload) + 4
	out := make([]byte, total)
	out[0] = 0x90
	binary.LittleEndian.PutUint16(out[1:], uint16(total))
	copy(out[4:], payload)
	return out
}

// DeviceString picks the short form when it fits and the kind byte would
// not collide with a long-form escape, the long ASCII form otherwise.
func DeviceString(s string) []byte {
	kind := byte((len(s) + 1) << 1)
	if len(s)+1 <= 127 && kind != 0x40 && kind != 0x90 && isASCII(s) {
		return ShortASCII(s)
	}
	if isASCII(s) {
		return LongASCII(s)
	}
	return LongUTF16(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
