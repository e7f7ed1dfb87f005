package cratedigger

import (
	"os"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/daitomanabe/cratedigger/anlz"
	"github.com/daitomanabe/cratedigger/codec"
	"github.com/daitomanabe/cratedigger/pdb"
)

// Database is a read-only handle on one export database file.
//
// The file is fully indexed at Open; afterwards every query works from the
// in-memory index over the resident (or mapped) buffer, so concurrent reads
// from multiple goroutines are safe. Close is exclusive: it waits for
// in-flight reads and then releases the buffer, after which every call
// fails with ErrClosed.
type Database struct {
	mu     sync.RWMutex
	closed bool

	file   *pdb.File
	idx    *rowIndex
	cues   *CuePointManager
	logger *Logger
	codec  codec.Codec
	source string
}

// Open opens and fully indexes the export database at path.
//
// It fails with the underlying fs error when the file cannot be read, and
// with ErrCorrupt/ErrTruncated when the binary layout is violated. No
// partially constructed handle is ever returned.
func Open(path string, optFns ...Option) (*Database, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	var (
		f   *pdb.File
		err error
	)
	if o.noMmap {
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			f, err = pdb.OpenBuffer(data)
		}
	} else {
		f, err = pdb.Open(path)
	}
	if err != nil {
		err = translateError(err)
		o.logger.LogOpen(path, 0, 0, err)
		return nil, err
	}

	db, err := newDatabase(f, path, o)
	o.logger.LogOpen(path, len(f.Tables()), f.PageSize(), err)
	return db, err
}

// OpenBuffer opens an in-memory database image. The buffer must stay
// unmodified for the lifetime of the handle.
func OpenBuffer(data []byte, optFns ...Option) (*Database, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	f, err := pdb.OpenBuffer(data)
	if err != nil {
		return nil, translateError(err)
	}
	return newDatabase(f, "", o)
}

func newDatabase(f *pdb.File, path string, o options) (*Database, error) {
	idx, err := buildIndex(f, o.logger)
	if err != nil {
		f.Close()
		return nil, translateError(err)
	}
	return &Database{
		file:   f,
		idx:    idx,
		cues:   NewCuePointManager(o.logger),
		logger: o.logger,
		codec:  o.codec,
		source: path,
	}, nil
}

// Close releases the underlying buffer. It is idempotent. Records and
// slices previously returned by value remain valid; views into the raw
// buffer do not.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.file.Close()
}

// SourcePath returns the path passed to Open, or "" for buffer-backed
// handles.
func (db *Database) SourcePath() string { return db.source }

// rlock acquires the read lock and rejects closed handles.
func (db *Database) rlock() error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

// Counts

func (db *Database) count(ki *kindIndex) (int, error) {
	if err := db.rlock(); err != nil {
		return 0, err
	}
	defer db.mu.RUnlock()
	return ki.count(), nil
}

// TrackCount returns the number of live track rows.
func (db *Database) TrackCount() (int, error) { return db.count(db.idx.tracks) }

// ArtistCount returns the number of live artist rows.
func (db *Database) ArtistCount() (int, error) { return db.count(db.idx.artists) }

// AlbumCount returns the number of live album rows.
func (db *Database) AlbumCount() (int, error) { return db.count(db.idx.albums) }

// GenreCount returns the number of live genre rows.
func (db *Database) GenreCount() (int, error) { return db.count(db.idx.genres) }

// LabelCount returns the number of live label rows.
func (db *Database) LabelCount() (int, error) { return db.count(db.idx.labels) }

// KeyCount returns the number of live musical key rows.
func (db *Database) KeyCount() (int, error) { return db.count(db.idx.keys) }

// ColorCount returns the number of live color rows.
func (db *Database) ColorCount() (int, error) { return db.count(db.idx.colors) }

// ArtworkCount returns the number of live artwork rows.
func (db *Database) ArtworkCount() (int, error) { return db.count(db.idx.artwork) }

// PlaylistCount returns the number of live playlist tree rows, folders
// included.
func (db *Database) PlaylistCount() (int, error) { return db.count(db.idx.playlists) }

// Single-record queries. A miss returns ErrNotFound; a malformed row
// returns a RowError (which unwraps to ErrCorrupt).

func lookupRecord[T any](db *Database, ki *kindIndex, id uint32, decode func(*pdb.File, pdb.RowRef) (*T, error)) (*T, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	loc, ok := ki.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return decode(db.file, loc.ref())
}

// GetTrack returns the track with the given identifier.
func (db *Database) GetTrack(id TrackID) (*Track, error) {
	return lookupRecord(db, db.idx.tracks, uint32(id), decodeTrack)
}

// GetArtist returns the artist with the given identifier.
func (db *Database) GetArtist(id ArtistID) (*Artist, error) {
	return lookupRecord(db, db.idx.artists, uint32(id), decodeArtist)
}

// GetAlbum returns the album with the given identifier.
func (db *Database) GetAlbum(id AlbumID) (*Album, error) {
	return lookupRecord(db, db.idx.albums, uint32(id), decodeAlbum)
}

// GetGenre returns the genre with the given identifier.
func (db *Database) GetGenre(id GenreID) (*Genre, error) {
	return lookupRecord(db, db.idx.genres, uint32(id), decodeGenre)
}

// GetLabel returns the label with the given identifier.
func (db *Database) GetLabel(id LabelID) (*Label, error) {
	return lookupRecord(db, db.idx.labels, uint32(id), decodeLabel)
}

// GetKey returns the musical key with the given identifier.
func (db *Database) GetKey(id KeyID) (*Key, error) {
	return lookupRecord(db, db.idx.keys, uint32(id), decodeKey)
}

// GetColor returns the color with the given identifier.
func (db *Database) GetColor(id ColorID) (*Color, error) {
	return lookupRecord(db, db.idx.colors, uint32(id), decodeColor)
}

// GetArtwork returns the artwork with the given identifier.
func (db *Database) GetArtwork(id ArtworkID) (*Artwork, error) {
	return lookupRecord(db, db.idx.artwork, uint32(id), decodeArtwork)
}

// GetPlaylist returns the playlist tree entry with the given identifier.
func (db *Database) GetPlaylist(id PlaylistID) (*Playlist, error) {
	return lookupRecord(db, db.idx.playlists, uint32(id), decodePlaylist)
}

// Identifier enumeration. Identifiers come back in ascending order, the
// same order bulk extraction uses.

func allIDs[T ~uint32](db *Database, ki *kindIndex) ([]T, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	out := make([]T, 0, ki.count())
	it := ki.ids.Iterator()
	for it.HasNext() {
		out = append(out, T(it.Next()))
	}
	return out, nil
}

// AllTrackIDs returns every known track identifier.
func (db *Database) AllTrackIDs() ([]TrackID, error) { return allIDs[TrackID](db, db.idx.tracks) }

// AllArtistIDs returns every known artist identifier.
func (db *Database) AllArtistIDs() ([]ArtistID, error) { return allIDs[ArtistID](db, db.idx.artists) }

// AllAlbumIDs returns every known album identifier.
func (db *Database) AllAlbumIDs() ([]AlbumID, error) { return allIDs[AlbumID](db, db.idx.albums) }

// AllGenreIDs returns every known genre identifier.
func (db *Database) AllGenreIDs() ([]GenreID, error) { return allIDs[GenreID](db, db.idx.genres) }

// AllPlaylistIDs returns every known playlist identifier.
func (db *Database) AllPlaylistIDs() ([]PlaylistID, error) {
	return allIDs[PlaylistID](db, db.idx.playlists)
}

// Playlist membership

// PlaylistTracks returns the track identifiers of a playlist in play
// order. Unknown playlists return ErrNotFound.
func (db *Database) PlaylistTracks(id PlaylistID) ([]TrackID, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	tracks, ok := db.idx.playlistTracks[uint32(id)]
	if !ok {
		// Distinguish an empty playlist from an unknown one.
		if _, exists := db.idx.playlists.lookup(uint32(id)); !exists {
			return nil, ErrNotFound
		}
		return nil, nil
	}
	return compactIDs(tracks), nil
}

// PlaylistChildren returns the playlists and folders directly inside the
// given folder, in display order. The device root is folder 0.
func (db *Database) PlaylistChildren(folder PlaylistID) ([]PlaylistID, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	children, ok := db.idx.folderChildren[uint32(folder)]
	if !ok {
		if folder != 0 {
			if _, exists := db.idx.playlists.lookup(uint32(folder)); !exists {
				return nil, ErrNotFound
			}
		}
		return nil, nil
	}
	return compactIDs(children), nil
}

// HistoryPlaylistTracks returns the track identifiers of a history
// playlist in play order.
func (db *Database) HistoryPlaylistTracks(id PlaylistID) ([]TrackID, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	tracks, ok := db.idx.historyTracks[uint32(id)]
	if !ok {
		for _, known := range db.idx.historyNames {
			if known == id {
				return nil, nil
			}
		}
		return nil, ErrNotFound
	}
	return compactIDs(tracks), nil
}

// FindHistoryPlaylist returns the identifier of the history playlist with
// the given name.
func (db *Database) FindHistoryPlaylist(name string) (PlaylistID, error) {
	if err := db.rlock(); err != nil {
		return 0, err
	}
	defer db.mu.RUnlock()

	id, ok := db.idx.historyNames[name]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// compactIDs drops the zero placeholders left by sparse entry indexes.
func compactIDs[T ~uint32](ids []T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// Secondary lookups

func tracksBy(db *Database, m map[uint32]*roaring.Bitmap, key uint32) ([]TrackID, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	bm := m[key]
	if bm == nil {
		return nil, nil
	}
	out := make([]TrackID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, TrackID(it.Next()))
	}
	return out, nil
}

// FindTracksByArtist returns the tracks referencing the artist as main
// artist, composer, original artist or remixer.
func (db *Database) FindTracksByArtist(id ArtistID) ([]TrackID, error) {
	return tracksBy(db, db.idx.byArtist, uint32(id))
}

// FindTracksByAlbum returns the tracks referencing the album.
func (db *Database) FindTracksByAlbum(id AlbumID) ([]TrackID, error) {
	return tracksBy(db, db.idx.byAlbum, uint32(id))
}

// FindTracksByGenre returns the tracks referencing the genre.
func (db *Database) FindTracksByGenre(id GenreID) ([]TrackID, error) {
	return tracksBy(db, db.idx.byGenre, uint32(id))
}

// Name lookups. Matching ignores case; a name with no match returns an
// empty result, not an error.

func idsByName[T ~uint32](db *Database, m map[string]*roaring.Bitmap, name string) ([]T, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	bm := m[strings.ToLower(name)]
	if bm == nil {
		return nil, nil
	}
	out := make([]T, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, T(it.Next()))
	}
	return out, nil
}

// FindTracksByTitle returns the tracks whose title equals title, ignoring
// case, in ascending identifier order.
func (db *Database) FindTracksByTitle(title string) ([]TrackID, error) {
	return idsByName[TrackID](db, db.idx.byTitle, title)
}

// FindArtistsByName returns the artists with the given name, ignoring
// case.
func (db *Database) FindArtistsByName(name string) ([]ArtistID, error) {
	return idsByName[ArtistID](db, db.idx.byArtistName, name)
}

// FindAlbumsByName returns the albums with the given name, ignoring case.
func (db *Database) FindAlbumsByName(name string) ([]AlbumID, error) {
	return idsByName[AlbumID](db, db.idx.byAlbumName, name)
}

// FindGenresByName returns the genres with the given name, ignoring case.
func (db *Database) FindGenresByName(name string) ([]GenreID, error) {
	return idsByName[GenreID](db, db.idx.byGenreName, name)
}

// Cue points

// LoadCuePoints scans dir recursively for rekordbox analysis files and
// indexes their cue points by embedded track path.
func (db *Database) LoadCuePoints(dir string) error {
	if err := db.rlock(); err != nil {
		return err
	}
	defer db.mu.RUnlock()
	return db.cues.ScanDirectory(dir)
}

// CuePoints returns the cue points recorded for the given track path.
func (db *Database) CuePoints(trackPath string) []anlz.CuePoint {
	return db.cues.CuePoints(trackPath)
}

// CuePointsForTrack resolves the track and returns the cue points recorded
// for its file path.
func (db *Database) CuePointsForTrack(id TrackID) ([]anlz.CuePoint, error) {
	track, err := db.GetTrack(id)
	if err != nil {
		return nil, err
	}
	if track.FilePath == "" {
		return nil, nil
	}
	return db.cues.CuePoints(track.FilePath), nil
}

// MarshalSchema serializes the API self-description with the handle's
// configured codec. The schema itself is handle-independent; see
// DescribeAPI.
func (db *Database) MarshalSchema() ([]byte, error) {
	if db.codec == nil {
		return codec.Default.Marshal(DescribeAPI())
	}
	return db.codec.Marshal(DescribeAPI())
}
