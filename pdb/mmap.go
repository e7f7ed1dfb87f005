package pdb

import (
	"fmt"
	"reflect"
	"unsafe"

	"golang.org/x/exp/mmap"
)

// mappedFile is a read-only memory mapping of a database file.
//
// Bytes aliases the mapped region and every slice derived from it becomes
// invalid after Close.
type mappedFile struct {
	r    *mmap.ReaderAt
	data []byte
}

func (m *mappedFile) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

func (m *mappedFile) Close() error {
	if m == nil {
		return nil
	}
	m.data = nil
	if m.r != nil {
		err := m.r.Close()
		m.r = nil
		return err
	}
	return nil
}

func mapFile(path string) (*mappedFile, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	if r.Len() <= 0 {
		_ = r.Close()
		return nil, fmt.Errorf("mmap: empty file")
	}
	data, err := readerAtBytes(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if len(data) != r.Len() {
		_ = r.Close()
		return nil, fmt.Errorf("mmap: unexpected mapping size: got %d, want %d", len(data), r.Len())
	}
	return &mappedFile{r: r, data: data}, nil
}

// readerAtBytes extracts the mapped []byte backing an mmap.ReaderAt.
//
// golang.org/x/exp/mmap intentionally exposes only the io.ReaderAt surface,
// but a zero-copy page decoder needs the raw region. The unexported `data`
// field is read via reflect+unsafe; if the upstream layout changes, this
// fails fast with a clear error and Open falls back to a full read.
func readerAtBytes(r *mmap.ReaderAt) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("mmap: nil reader")
	}
	v := reflect.ValueOf(r)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("mmap: unexpected reader kind")
	}
	e := v.Elem()
	if e.Kind() != reflect.Struct {
		return nil, fmt.Errorf("mmap: unexpected reader layout")
	}
	f := e.FieldByName("data")
	if !f.IsValid() || f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.Uint8 {
		return nil, fmt.Errorf("mmap: unsupported golang.org/x/exp/mmap.ReaderAt version (missing data field)")
	}
	if !f.CanAddr() {
		return nil, fmt.Errorf("mmap: cannot address reader data")
	}
	return *(*[]byte)(unsafe.Pointer(f.UnsafeAddr())), nil
}
