package cratedigger

import (
	"encoding/binary"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/daitomanabe/cratedigger/pdb"
)

// maxOrderedEntries bounds the entry index / sort order values trusted
// from the file. Ordering slots are allocated densely, so an absurd value
// in a malformed row would otherwise force a multi-gigabyte allocation at
// open; rows beyond the bound are dropped.
const maxOrderedEntries = 1 << 20

// rowLoc is the physical location of one indexed row.
type rowLoc struct {
	page uint32
	slot uint16
	off  int64
}

func locOf(ref pdb.RowRef) rowLoc {
	return rowLoc{page: ref.Page, slot: ref.Slot, off: ref.Offset}
}

func (l rowLoc) ref() pdb.RowRef {
	return pdb.RowRef{Page: l.page, Slot: l.slot, Offset: l.off}
}

// kindIndex maps the identifiers of one entity kind to row locations.
//
// Rows are added in page-chain order, so a duplicate identifier is won by
// the later page (re-exports overwrite pages in place; the last written
// copy is the live one). The id bitmap gives a deterministic ascending
// iteration order shared by AllIDs and bulk extraction.
type kindIndex struct {
	ids     *roaring.Bitmap
	locs    map[uint32]rowLoc
	skipped int // rows whose identifier field was unreadable
}

func newKindIndex() *kindIndex {
	return &kindIndex{ids: roaring.New(), locs: make(map[uint32]rowLoc)}
}

func (ki *kindIndex) add(id uint32, loc rowLoc) {
	ki.ids.Add(id)
	ki.locs[id] = loc
}

func (ki *kindIndex) lookup(id uint32) (rowLoc, bool) {
	loc, ok := ki.locs[id]
	return loc, ok
}

func (ki *kindIndex) count() int { return len(ki.locs) }

// rowIndex holds the per-kind indexes of one open database.
// It is built once at open time and read-only afterwards.
type rowIndex struct {
	tracks    *kindIndex
	artists   *kindIndex
	albums    *kindIndex
	genres    *kindIndex
	labels    *kindIndex
	keys      *kindIndex
	colors    *kindIndex
	artwork   *kindIndex
	playlists *kindIndex

	// Playlist membership, ordered by entry index / sort order.
	playlistTracks map[uint32][]TrackID
	folderChildren map[uint32][]PlaylistID

	// History playlists (play history snapshots on the device).
	historyNames  map[string]PlaylistID
	historyTracks map[uint32][]TrackID

	// Secondary track indexes by foreign key.
	byArtist map[uint32]*roaring.Bitmap
	byAlbum  map[uint32]*roaring.Bitmap
	byGenre  map[uint32]*roaring.Bitmap

	// Name lookup, keyed by lowercased name.
	byTitle      map[string]*roaring.Bitmap
	byArtistName map[string]*roaring.Bitmap
	byAlbumName  map[string]*roaring.Bitmap
	byGenreName  map[string]*roaring.Bitmap
}

// addNameRef records id under the case-folded name. Empty names (absent
// or undecodable strings) are not indexed.
func addNameRef(m map[string]*roaring.Bitmap, name string, id uint32) {
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	bm := m[key]
	if bm == nil {
		bm = roaring.New()
		m[key] = bm
	}
	bm.Add(id)
}

// buildIndex scans every table once and builds all indexes. Tables write
// disjoint fields, so they are scanned concurrently over the shared
// read-only buffer.
func buildIndex(f *pdb.File, log *Logger) (*rowIndex, error) {
	idx := &rowIndex{
		tracks:         newKindIndex(),
		artists:        newKindIndex(),
		albums:         newKindIndex(),
		genres:         newKindIndex(),
		labels:         newKindIndex(),
		keys:           newKindIndex(),
		colors:         newKindIndex(),
		artwork:        newKindIndex(),
		playlists:      newKindIndex(),
		playlistTracks: make(map[uint32][]TrackID),
		folderChildren: make(map[uint32][]PlaylistID),
		historyNames:   make(map[string]PlaylistID),
		historyTracks:  make(map[uint32][]TrackID),
		byArtist:       make(map[uint32]*roaring.Bitmap),
		byAlbum:        make(map[uint32]*roaring.Bitmap),
		byGenre:        make(map[uint32]*roaring.Bitmap),
		byTitle:        make(map[string]*roaring.Bitmap),
		byArtistName:   make(map[string]*roaring.Bitmap),
		byAlbumName:    make(map[string]*roaring.Bitmap),
		byGenreName:    make(map[string]*roaring.Bitmap),
	}

	var g errgroup.Group
	g.Go(func() error { return idx.indexTracks(f, log) })
	g.Go(func() error { return idx.indexPlaylists(f, log) })
	g.Go(func() error { return idx.indexHistory(f) })
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeArtists, idx.artists, KindArtist,
			artistRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b[4:]) },
			func(id uint32, ref pdb.RowRef, b []byte) {
				subtype := binary.LittleEndian.Uint16(b)
				name := f.ReadString(ref.Offset + nameOffset(f, ref, subtype, b[9], 0x0a))
				addNameRef(idx.byArtistName, name, id)
			})
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeAlbums, idx.albums, KindAlbum,
			albumRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b[12:]) },
			func(id uint32, ref pdb.RowRef, b []byte) {
				subtype := binary.LittleEndian.Uint16(b)
				name := f.ReadString(ref.Offset + nameOffset(f, ref, subtype, b[21], 0x16))
				addNameRef(idx.byAlbumName, name, id)
			})
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeGenres, idx.genres, KindGenre,
			genreRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) },
			func(id uint32, ref pdb.RowRef, _ []byte) {
				addNameRef(idx.byGenreName, f.ReadString(ref.Offset+genreRowSize), id)
			})
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeLabels, idx.labels, KindLabel,
			labelRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }, nil)
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeKeys, idx.keys, KindKey,
			keyRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }, nil)
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeColors, idx.colors, KindColor,
			colorRowSize, func(b []byte) uint32 { return uint32(binary.LittleEndian.Uint16(b[5:])) }, nil)
	})
	g.Go(func() error {
		return idx.indexSimple(f, log, pdb.PageTypeArtwork, idx.artwork, KindArtwork,
			artworkRowSize, func(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }, nil)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *rowIndex) indexSimple(f *pdb.File, log *Logger, t pdb.PageType, ki *kindIndex, kind Kind, span int64, idAt func([]byte) uint32, noteName func(uint32, pdb.RowRef, []byte)) error {
	err := f.ScanTable(t, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, span, kind)
		if rerr != nil {
			ki.skipped++
			return nil
		}
		ki.add(idAt(b), locOf(ref))
		return nil
	})
	if err == nil && noteName != nil {
		// Names come from the surviving rows only, so a rewritten page
		// cannot leave a stale name in the index.
		for id, loc := range ki.locs {
			ref := loc.ref()
			if b, rerr := rowSpan(f, ref, span, kind); rerr == nil {
				noteName(id, ref, b)
			}
		}
	}
	log.LogIndex(kind, ki.count(), ki.skipped)
	return err
}

func (idx *rowIndex) indexTracks(f *pdb.File, log *Logger) error {
	// Indexing needs the identifier at offset 72 and the foreign keys
	// before it; the string block may legitimately be cut short on a
	// damaged row and is only required when the row is materialized.
	const idSpan = 76

	addRef := func(m map[uint32]*roaring.Bitmap, key, trackID uint32) {
		if key == 0 {
			return
		}
		bm := m[key]
		if bm == nil {
			bm = roaring.New()
			m[key] = bm
		}
		bm.Add(trackID)
	}

	err := f.ScanTable(pdb.PageTypeTracks, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, idSpan, KindTrack)
		if rerr != nil {
			idx.tracks.skipped++
			return nil
		}
		id := binary.LittleEndian.Uint32(b[72:])
		idx.tracks.add(id, locOf(ref))

		addRef(idx.byGenre, binary.LittleEndian.Uint32(b[60:]), id)
		addRef(idx.byAlbum, binary.LittleEndian.Uint32(b[64:]), id)
		addRef(idx.byArtist, binary.LittleEndian.Uint32(b[68:]), id)
		addRef(idx.byArtist, binary.LittleEndian.Uint32(b[12:]), id) // composer
		addRef(idx.byArtist, binary.LittleEndian.Uint32(b[36:]), id) // original artist
		addRef(idx.byArtist, binary.LittleEndian.Uint32(b[44:]), id) // remixer
		return nil
	})
	if err == nil {
		// Index titles over the surviving rows. Title is string field 17;
		// its offset sits past idSpan, so a cut-short string block just
		// leaves that track out of the title index.
		for id, loc := range idx.tracks.locs {
			ref := loc.ref()
			if ob, ok := f.Bytes(ref.Offset+trackRowStringOfs+2*17, 2); ok {
				title := f.ReadString(ref.Offset + int64(binary.LittleEndian.Uint16(ob)))
				addNameRef(idx.byTitle, title, id)
			}
		}
	}
	log.LogIndex(KindTrack, idx.tracks.count(), idx.tracks.skipped)
	return err
}

func (idx *rowIndex) indexPlaylists(f *pdb.File, log *Logger) error {
	err := f.ScanTable(pdb.PageTypePlaylistTree, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, playlistTreeRowSize, KindPlaylist)
		if rerr != nil {
			idx.playlists.skipped++
			return nil
		}
		parent := binary.LittleEndian.Uint32(b[0:])
		rawOrder := binary.LittleEndian.Uint32(b[8:])
		id := binary.LittleEndian.Uint32(b[12:])
		if rawOrder >= maxOrderedEntries {
			idx.playlists.skipped++
			return nil
		}
		sortOrder := int(rawOrder)
		idx.playlists.add(id, locOf(ref))

		children := idx.folderChildren[parent]
		if len(children) <= sortOrder {
			children = append(children, make([]PlaylistID, sortOrder+1-len(children))...)
		}
		children[sortOrder] = PlaylistID(id)
		idx.folderChildren[parent] = children
		return nil
	})
	if err != nil {
		return err
	}
	log.LogIndex(KindPlaylist, idx.playlists.count(), idx.playlists.skipped)

	return f.ScanTable(pdb.PageTypePlaylistEntries, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, playlistEntryRowSize, KindPlaylist)
		if rerr != nil {
			return nil
		}
		rawIndex := binary.LittleEndian.Uint32(b[0:])
		trackID := binary.LittleEndian.Uint32(b[4:])
		playlistID := binary.LittleEndian.Uint32(b[8:])
		if rawIndex >= maxOrderedEntries {
			return nil
		}
		entryIndex := int(rawIndex)

		tracks := idx.playlistTracks[playlistID]
		if len(tracks) <= entryIndex {
			tracks = append(tracks, make([]TrackID, entryIndex+1-len(tracks))...)
		}
		tracks[entryIndex] = TrackID(trackID)
		idx.playlistTracks[playlistID] = tracks
		return nil
	})
}

func (idx *rowIndex) indexHistory(f *pdb.File) error {
	err := f.ScanTable(pdb.PageTypeHistoryPlaylists, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, historyListRowSize, KindPlaylist)
		if rerr != nil {
			return nil
		}
		id := binary.LittleEndian.Uint32(b)
		name := f.ReadString(ref.Offset + historyListRowSize)
		idx.historyNames[name] = PlaylistID(id)
		return nil
	})
	if err != nil {
		return err
	}

	return f.ScanTable(pdb.PageTypeHistoryEntries, func(ref pdb.RowRef) error {
		b, rerr := rowSpan(f, ref, historyEntryRowSize, KindPlaylist)
		if rerr != nil {
			return nil
		}
		trackID := binary.LittleEndian.Uint32(b[0:])
		playlistID := binary.LittleEndian.Uint32(b[4:])
		rawIndex := binary.LittleEndian.Uint32(b[8:])
		if rawIndex >= maxOrderedEntries {
			return nil
		}
		entryIndex := int(rawIndex)

		tracks := idx.historyTracks[playlistID]
		if len(tracks) <= entryIndex {
			tracks = append(tracks, make([]TrackID, entryIndex+1-len(tracks))...)
		}
		tracks[entryIndex] = TrackID(trackID)
		idx.historyTracks[playlistID] = tracks
		return nil
	})
}
