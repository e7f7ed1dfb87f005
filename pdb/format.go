package pdb

import "errors"

// On-disk layout constants for rekordbox export.pdb files.
//
// The format is little-endian and page oriented. The file starts with a
// fixed header followed by a table directory; each table owns a singly
// linked chain of fixed-size pages. Row data grows up from the page heap
// while the row directory grows down from the page tail in groups of 16
// slots.
const (
	// fileHeaderSize is the fixed header before the table directory.
	fileHeaderSize = 28
	// tableEntrySize is the size of one table directory entry.
	tableEntrySize = 16
	// heapStart is the page offset at which row data begins.
	heapStart = 40
	// rowGroupStride is the distance between row group footers,
	// measured back from the page tail.
	rowGroupStride = 0x24
	// rowsPerGroup is the number of slots described by one row group.
	rowsPerGroup = 16

	// MaxPageSize is the largest page size accepted in a file header.
	MaxPageSize = 65536

	// pageFlagNonData marks pages that carry no row data (index pages).
	pageFlagNonData = 0x40
)

var (
	// ErrCorrupt indicates a structural violation of the binary layout.
	ErrCorrupt = errors.New("pdb: corrupt file")
	// ErrTruncated indicates that declared extents exceed the actual data.
	ErrTruncated = errors.New("pdb: truncated file")
)

// PageType identifies the row type stored by a table and its pages.
type PageType uint32

const (
	PageTypeTracks           PageType = 0
	PageTypeGenres           PageType = 1
	PageTypeArtists          PageType = 2
	PageTypeAlbums           PageType = 3
	PageTypeLabels           PageType = 4
	PageTypeKeys             PageType = 5
	PageTypeColors           PageType = 6
	PageTypePlaylistTree     PageType = 7
	PageTypePlaylistEntries  PageType = 8
	PageTypeHistoryPlaylists PageType = 11
	PageTypeHistoryEntries   PageType = 12
	PageTypeArtwork          PageType = 13
	PageTypeColumns          PageType = 16
	PageTypeHistory          PageType = 19
)

// String returns a short name for the page type.
func (t PageType) String() string {
	switch t {
	case PageTypeTracks:
		return "tracks"
	case PageTypeGenres:
		return "genres"
	case PageTypeArtists:
		return "artists"
	case PageTypeAlbums:
		return "albums"
	case PageTypeLabels:
		return "labels"
	case PageTypeKeys:
		return "keys"
	case PageTypeColors:
		return "colors"
	case PageTypePlaylistTree:
		return "playlist_tree"
	case PageTypePlaylistEntries:
		return "playlist_entries"
	case PageTypeHistoryPlaylists:
		return "history_playlists"
	case PageTypeHistoryEntries:
		return "history_entries"
	case PageTypeArtwork:
		return "artwork"
	case PageTypeColumns:
		return "columns"
	case PageTypeHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Table is one entry of the file's table directory.
type Table struct {
	Type           PageType
	EmptyCandidate uint32 // page that may be allocated next
	FirstPage      uint32
	LastPage       uint32
}

// RowRef locates one occupied row slot in the file.
type RowRef struct {
	Page   uint32 // page index
	Slot   uint16 // slot ordinal within the page
	Offset int64  // absolute byte offset of the row start
}
