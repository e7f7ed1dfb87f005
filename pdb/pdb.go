// Package pdb decodes the page structure of rekordbox export.pdb files.
//
// The package is a pure reader: it validates the file header, exposes random
// access to pages, and iterates the occupied row slots of a table's page
// chain. It does not interpret row contents beyond their location; typed
// decoding lives in the parent package.
//
// All views returned by Bytes alias the underlying buffer and become invalid
// once Close unmaps it.
package pdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// File provides random access to the pages of an export database.
type File struct {
	data      []byte
	pageSize  uint32
	pageCount uint32 // declared by the header (next unused page)
	tables    []Table
	closer    io.Closer // non-nil for mmap-backed files
}

// Open maps path read-only and validates its header.
//
// Mapping falls back to a full read when the platform cannot mmap the file.
func Open(path string) (*File, error) {
	m, err := mapFile(path)
	if err == nil {
		f, err := OpenBuffer(m.Bytes())
		if err != nil {
			m.Close()
			return nil, err
		}
		f.closer = m
		return f, nil
	}
	// Fall back to a resident copy. Propagate plain IO errors
	// (missing file, permissions) rather than mmap internals.
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, rerr
	}
	return OpenBuffer(data)
}

// OpenBuffer validates the header of an in-memory database image.
//
// The returned File aliases data; the caller must not mutate it.
func OpenBuffer(data []byte) (*File, error) {
	f := &File{data: data}
	if err := f.parseHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parseHeader() error {
	if len(f.data) < fileHeaderSize {
		return fmt.Errorf("%w: %d bytes is below the minimum header size", ErrCorrupt, len(f.data))
	}
	if sig := binary.LittleEndian.Uint32(f.data[0:]); sig != 0 {
		return fmt.Errorf("%w: bad signature %#08x", ErrCorrupt, sig)
	}

	f.pageSize = binary.LittleEndian.Uint32(f.data[4:])
	if f.pageSize == 0 || f.pageSize > MaxPageSize {
		return fmt.Errorf("%w: invalid page size %d", ErrCorrupt, f.pageSize)
	}

	tableCount := binary.LittleEndian.Uint32(f.data[8:])
	f.pageCount = binary.LittleEndian.Uint32(f.data[12:])

	dirEnd := int64(fileHeaderSize) + int64(tableCount)*tableEntrySize
	if dirEnd > int64(len(f.data)) {
		return fmt.Errorf("%w: table directory extends past end of file", ErrCorrupt)
	}
	if int64(f.pageCount)*int64(f.pageSize) > int64(len(f.data)) {
		return fmt.Errorf("%w: header declares %d pages of %d bytes, file has %d bytes",
			ErrTruncated, f.pageCount, f.pageSize, len(f.data))
	}

	f.tables = make([]Table, 0, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		off := fileHeaderSize + int64(i)*tableEntrySize
		f.tables = append(f.tables, Table{
			Type:           PageType(binary.LittleEndian.Uint32(f.data[off:])),
			EmptyCandidate: binary.LittleEndian.Uint32(f.data[off+4:]),
			FirstPage:      binary.LittleEndian.Uint32(f.data[off+8:]),
			LastPage:       binary.LittleEndian.Uint32(f.data[off+12:]),
		})
	}
	return nil
}

// PageSize returns the page size declared by the header.
func (f *File) PageSize() uint32 { return f.pageSize }

// PageCount returns the page count declared by the header.
func (f *File) PageCount() uint32 { return f.pageCount }

// Tables returns the table directory in file order.
func (f *File) Tables() []Table { return f.tables }

// Table returns the directory entry for the given page type.
func (f *File) Table(t PageType) (Table, bool) {
	for _, tbl := range f.tables {
		if tbl.Type == t {
			return tbl, true
		}
	}
	return Table{}, false
}

// Size returns the buffer length in bytes.
func (f *File) Size() int64 { return int64(len(f.data)) }

// Close releases the underlying mapping, if any. The File and every view
// derived from it must not be used afterwards.
func (f *File) Close() error {
	f.data = nil
	f.tables = nil
	if f.closer != nil {
		err := f.closer.Close()
		f.closer = nil
		return err
	}
	return nil
}

// Bytes returns a read-only view of n bytes at off, or false if the range
// falls outside the buffer.
func (f *File) Bytes(off, n int64) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > int64(len(f.data)) {
		return nil, false
	}
	return f.data[off : off+n : off+n], true
}

// Page is the decoded header of a single page.
type Page struct {
	Index         uint32
	Type          PageType
	NextPage      uint32
	NumRowOffsets uint16 // slots in the row directory, including freed ones
	NumRows       uint16 // occupied slots
	Flags         uint8
	FreeSize      uint16
	UsedSize      uint16

	f    *File
	base int64 // absolute offset of the page start
}

// IsDataPage reports whether the page carries row data.
func (p *Page) IsDataPage() bool { return p.Flags&pageFlagNonData == 0 }

// Page decodes the page at the given index.
func (f *File) Page(index uint32) (*Page, error) {
	base := int64(index) * int64(f.pageSize)
	if base+int64(f.pageSize) > int64(len(f.data)) {
		return nil, fmt.Errorf("%w: page %d extends past end of file", ErrTruncated, index)
	}
	b := f.data[base:]

	rowInfo := binary.LittleEndian.Uint32(b[20:])
	p := &Page{
		Index:         binary.LittleEndian.Uint32(b[4:]),
		Type:          PageType(binary.LittleEndian.Uint32(b[8:])),
		NextPage:      binary.LittleEndian.Uint32(b[12:]),
		NumRowOffsets: uint16(rowInfo & 0x1fff),
		NumRows:       uint16((rowInfo >> 13) & 0x7ff),
		Flags:         uint8(rowInfo >> 24),
		FreeSize:      binary.LittleEndian.Uint16(b[24:]),
		UsedSize:      binary.LittleEndian.Uint16(b[26:]),
		f:             f,
		base:          base,
	}
	return p, nil
}

// Rows calls fn for every occupied slot of a data page, in slot order.
// Slots whose present bit is clear (freed or never written) are skipped.
//
// It fails with ErrCorrupt when the row directory describes more slots than
// the page extent can hold, or when a slot offset points outside the page.
func (p *Page) Rows(fn func(ref RowRef) error) error {
	if !p.IsDataPage() || p.NumRowOffsets == 0 {
		return nil
	}

	pageSize := int64(p.f.pageSize)
	numGroups := (int(p.NumRowOffsets)-1)/rowsPerGroup + 1

	slot := uint16(0)
	for g := 0; g < numGroups; g++ {
		groupBase := pageSize - int64(g)*rowGroupStride
		// The footer of this group must not collide with the heap.
		if groupBase-rowGroupStride < heapStart {
			return fmt.Errorf("%w: page %d row directory overruns page extent", ErrCorrupt, p.Index)
		}
		presentFlags := binary.LittleEndian.Uint16(p.f.data[p.base+groupBase-4:])

		inGroup := int(p.NumRowOffsets) - g*rowsPerGroup
		if inGroup > rowsPerGroup {
			inGroup = rowsPerGroup
		}
		for i := 0; i < inGroup; i++ {
			present := presentFlags>>i&1 != 0
			if !present {
				slot++
				continue
			}
			rowOfs := binary.LittleEndian.Uint16(p.f.data[p.base+groupBase-int64(6+2*i):])
			if int64(heapStart)+int64(rowOfs) >= pageSize {
				return fmt.Errorf("%w: page %d slot %d offset %d outside page", ErrCorrupt, p.Index, slot, rowOfs)
			}
			ref := RowRef{
				Page:   p.Index,
				Slot:   slot,
				Offset: p.base + heapStart + int64(rowOfs),
			}
			if err := fn(ref); err != nil {
				return err
			}
			slot++
		}
	}
	return nil
}

// ScanTable walks the page chain of the table with the given type and calls
// fn for every occupied row. Tables absent from the directory scan nothing.
func (f *File) ScanTable(t PageType, fn func(ref RowRef) error) error {
	tbl, ok := f.Table(t)
	if !ok {
		return nil
	}

	// A well-formed chain visits each page at most once; anything longer
	// means a cycle in next-page links.
	maxSteps := len(f.data)/int(f.pageSize) + 1

	current := tbl.FirstPage
	for steps := 0; ; steps++ {
		if steps > maxSteps {
			return fmt.Errorf("%w: cycle in page chain of table %v", ErrCorrupt, t)
		}
		page, err := f.Page(current)
		if err != nil {
			return err
		}
		if page.IsDataPage() {
			if err := page.Rows(fn); err != nil {
				return err
			}
		}
		if current == tbl.LastPage {
			return nil
		}
		current = page.NextPage
	}
}
