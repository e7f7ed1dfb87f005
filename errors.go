package cratedigger

import (
	"errors"
	"fmt"

	"github.com/daitomanabe/cratedigger/pdb"
)

var (
	// ErrCorrupt indicates a structural violation of the binary layout.
	ErrCorrupt = errors.New("cratedigger: corrupt database")

	// ErrTruncated indicates that the header declares more data than the
	// file contains.
	ErrTruncated = errors.New("cratedigger: truncated database")

	// ErrClosed is returned when a Database is used after Close.
	ErrClosed = errors.New("cratedigger: database is closed")

	// ErrNotFound is returned for a normal query miss. A miss is expected
	// behavior, not a failure; check with errors.Is.
	ErrNotFound = errors.New("cratedigger: not found")
)

// RowError describes a single malformed row.
//
// Single-record queries surface it; bulk extraction swallows and counts it.
// It unwraps to ErrCorrupt.
type RowError struct {
	Kind   Kind
	Page   uint32
	Slot   uint16
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("cratedigger: corrupt %s row (page %d, slot %d): %s", e.Kind, e.Page, e.Slot, e.Reason)
}

func (e *RowError) Unwrap() error { return ErrCorrupt }

// translateError maps page-decoder errors onto the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pdb.ErrTruncated) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	if errors.Is(err, pdb.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
