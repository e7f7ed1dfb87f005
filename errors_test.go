package cratedigger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daitomanabe/cratedigger/pdb"
)

func TestRowErrorUnwrapsToCorrupt(t *testing.T) {
	err := &RowError{Kind: KindTrack, Page: 3, Slot: 7, Reason: "row extends past page extent"}

	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "track")
	assert.Contains(t, err.Error(), "page 3")
	assert.Contains(t, err.Error(), "slot 7")
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	assert.ErrorIs(t, translateError(pdb.ErrCorrupt), ErrCorrupt)
	assert.ErrorIs(t, translateError(pdb.ErrTruncated), ErrTruncated)

	// Plain IO errors pass through untouched.
	ioErr := errors.New("permission denied")
	assert.Equal(t, ioErr, translateError(ioErr))
}
