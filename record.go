package cratedigger

import (
	"encoding/binary"

	"github.com/daitomanabe/cratedigger/pdb"
)

// Fixed row extents per kind. A row whose fixed head does not fit inside
// its page is malformed: single-record queries fail with a RowError, bulk
// extraction skips and counts it.
const (
	trackRowSize         = 136 // 94-byte fixed head + 21 u16 string offsets
	trackRowStringOfs    = 94
	trackRowStringFields = 21

	artistRowSize        = 10
	albumRowSize         = 22
	genreRowSize         = 4
	labelRowSize         = 4
	keyRowSize           = 8
	colorRowSize         = 8
	artworkRowSize       = 4
	playlistTreeRowSize  = 20
	playlistEntryRowSize = 12
	historyListRowSize   = 4
	historyEntryRowSize  = 12

	// rowSubtypeFarStrings marks rows whose name offset is a u16 beyond
	// the u8 near-offset field.
	rowSubtypeFarStrings = 0x04
)

// Track is the typed view of one track row.
//
// Referential fields (ArtistID, AlbumID, ...) stay identifiers; resolve them
// with the corresponding Get method when needed. BPM is the stored tempo
// (BPM x 100) divided by 100.
type Track struct {
	ID               TrackID   `json:"id"`
	Title            string    `json:"title"`
	ArtistID         ArtistID  `json:"artist_id"`
	ComposerID       ArtistID  `json:"composer_id"`
	OriginalArtistID ArtistID  `json:"original_artist_id"`
	RemixerID        ArtistID  `json:"remixer_id"`
	AlbumID          AlbumID   `json:"album_id"`
	GenreID          GenreID   `json:"genre_id"`
	LabelID          LabelID   `json:"label_id"`
	KeyID            KeyID     `json:"key_id"`
	ColorID          ColorID   `json:"color_id"`
	ArtworkID        ArtworkID `json:"artwork_id"`
	BPM              float64   `json:"bpm"`
	DurationSeconds  int       `json:"duration_seconds"`
	Rating           int       `json:"rating"`
	Year             int       `json:"year"`
	Bitrate          int       `json:"bitrate"`
	SampleRate       int       `json:"sample_rate"`
	SampleDepth      int       `json:"sample_depth"`
	FileSize         int64     `json:"file_size"`
	TrackNumber      int       `json:"track_number"`
	DiscNumber       int       `json:"disc_number"`
	PlayCount        int       `json:"play_count"`
	ISRC             string    `json:"isrc,omitempty"`
	DateAdded        string    `json:"date_added,omitempty"`
	ReleaseDate      string    `json:"release_date,omitempty"`
	MixName          string    `json:"mix_name,omitempty"`
	AnalyzePath      string    `json:"analyze_path,omitempty"`
	AnalyzeDate      string    `json:"analyze_date,omitempty"`
	Comment          string    `json:"comment,omitempty"`
	Filename         string    `json:"filename,omitempty"`
	FilePath         string    `json:"file_path,omitempty"`
}

// Artist is the typed view of one artist row.
type Artist struct {
	ID   ArtistID `json:"id"`
	Name string   `json:"name"`
}

// Album is the typed view of one album row.
type Album struct {
	ID       AlbumID  `json:"id"`
	ArtistID ArtistID `json:"artist_id"`
	Name     string   `json:"name"`
}

// Genre is the typed view of one genre row.
type Genre struct {
	ID   GenreID `json:"id"`
	Name string  `json:"name"`
}

// Label is the typed view of one label row.
type Label struct {
	ID   LabelID `json:"id"`
	Name string  `json:"name"`
}

// Key is the typed view of one musical key row.
type Key struct {
	ID   KeyID  `json:"id"`
	Name string `json:"name"`
}

// Color is the typed view of one color row.
type Color struct {
	ID   ColorID `json:"id"`
	Name string  `json:"name"`
}

// Artwork is the typed view of one artwork row.
type Artwork struct {
	ID   ArtworkID `json:"id"`
	Path string    `json:"path"`
}

// Playlist is the typed view of one playlist tree row. Folders group other
// playlists; their track list is empty.
type Playlist struct {
	ID        PlaylistID `json:"id"`
	ParentID  PlaylistID `json:"parent_id"`
	SortOrder int        `json:"sort_order"`
	IsFolder  bool       `json:"is_folder"`
	Name      string     `json:"name"`
}

// rowSpan returns n bytes of row data at ref, verifying that the fixed
// extent stays inside the row's page.
func rowSpan(f *pdb.File, ref pdb.RowRef, n int64, kind Kind) ([]byte, error) {
	pageSize := int64(f.PageSize())
	pageEnd := (ref.Offset/pageSize + 1) * pageSize
	if ref.Offset+n > pageEnd {
		return nil, &RowError{Kind: kind, Page: ref.Page, Slot: ref.Slot, Reason: "row extends past page extent"}
	}
	b, ok := f.Bytes(ref.Offset, n)
	if !ok {
		return nil, &RowError{Kind: kind, Page: ref.Page, Slot: ref.Slot, Reason: "row extends past end of file"}
	}
	return b, nil
}

func decodeTrack(f *pdb.File, ref pdb.RowRef) (*Track, error) {
	b, err := rowSpan(f, ref, trackRowSize, KindTrack)
	if err != nil {
		return nil, err
	}

	t := &Track{
		SampleRate:       int(binary.LittleEndian.Uint32(b[8:])),
		ComposerID:       ArtistID(binary.LittleEndian.Uint32(b[12:])),
		FileSize:         int64(binary.LittleEndian.Uint32(b[16:])),
		ArtworkID:        ArtworkID(binary.LittleEndian.Uint32(b[28:])),
		KeyID:            KeyID(binary.LittleEndian.Uint32(b[32:])),
		OriginalArtistID: ArtistID(binary.LittleEndian.Uint32(b[36:])),
		LabelID:          LabelID(binary.LittleEndian.Uint32(b[40:])),
		RemixerID:        ArtistID(binary.LittleEndian.Uint32(b[44:])),
		Bitrate:          int(binary.LittleEndian.Uint32(b[48:])),
		TrackNumber:      int(binary.LittleEndian.Uint32(b[52:])),
		BPM:              float64(binary.LittleEndian.Uint32(b[56:])) / 100,
		GenreID:          GenreID(binary.LittleEndian.Uint32(b[60:])),
		AlbumID:          AlbumID(binary.LittleEndian.Uint32(b[64:])),
		ArtistID:         ArtistID(binary.LittleEndian.Uint32(b[68:])),
		ID:               TrackID(binary.LittleEndian.Uint32(b[72:])),
		DiscNumber:       int(binary.LittleEndian.Uint16(b[76:])),
		PlayCount:        int(binary.LittleEndian.Uint16(b[78:])),
		Year:             int(binary.LittleEndian.Uint16(b[80:])),
		SampleDepth:      int(binary.LittleEndian.Uint16(b[82:])),
		DurationSeconds:  int(binary.LittleEndian.Uint16(b[84:])),
		ColorID:          ColorID(b[88]),
		Rating:           int(b[89]),
	}

	str := func(index int) string {
		ofs := binary.LittleEndian.Uint16(b[trackRowStringOfs+2*index:])
		return f.ReadString(ref.Offset + int64(ofs))
	}
	t.ISRC = str(0)
	t.DateAdded = str(10)
	t.ReleaseDate = str(11)
	t.MixName = str(12)
	t.AnalyzePath = str(14)
	t.AnalyzeDate = str(15)
	t.Comment = str(16)
	t.Title = str(17)
	t.Filename = str(19)
	t.FilePath = str(20)

	return t, nil
}

// nameOffset resolves the near/far string offset scheme shared by artist
// and album rows: a u8 near offset, or a u16 at farOfs when the subtype
// carries the far-strings bit.
func nameOffset(f *pdb.File, ref pdb.RowRef, subtype uint16, near uint8, farOfs int64) int64 {
	if subtype&rowSubtypeFarStrings != 0 {
		if b, ok := f.Bytes(ref.Offset+farOfs, 2); ok {
			return int64(binary.LittleEndian.Uint16(b))
		}
	}
	return int64(near)
}

func decodeArtist(f *pdb.File, ref pdb.RowRef) (*Artist, error) {
	b, err := rowSpan(f, ref, artistRowSize, KindArtist)
	if err != nil {
		return nil, err
	}
	subtype := binary.LittleEndian.Uint16(b[0:])
	a := &Artist{ID: ArtistID(binary.LittleEndian.Uint32(b[4:]))}
	a.Name = f.ReadString(ref.Offset + nameOffset(f, ref, subtype, b[9], 0x0a))
	return a, nil
}

func decodeAlbum(f *pdb.File, ref pdb.RowRef) (*Album, error) {
	b, err := rowSpan(f, ref, albumRowSize, KindAlbum)
	if err != nil {
		return nil, err
	}
	subtype := binary.LittleEndian.Uint16(b[0:])
	a := &Album{
		ArtistID: ArtistID(binary.LittleEndian.Uint32(b[8:])),
		ID:       AlbumID(binary.LittleEndian.Uint32(b[12:])),
	}
	a.Name = f.ReadString(ref.Offset + nameOffset(f, ref, subtype, b[21], 0x16))
	return a, nil
}

func decodeGenre(f *pdb.File, ref pdb.RowRef) (*Genre, error) {
	b, err := rowSpan(f, ref, genreRowSize, KindGenre)
	if err != nil {
		return nil, err
	}
	return &Genre{
		ID:   GenreID(binary.LittleEndian.Uint32(b)),
		Name: f.ReadString(ref.Offset + genreRowSize),
	}, nil
}

func decodeLabel(f *pdb.File, ref pdb.RowRef) (*Label, error) {
	b, err := rowSpan(f, ref, labelRowSize, KindLabel)
	if err != nil {
		return nil, err
	}
	return &Label{
		ID:   LabelID(binary.LittleEndian.Uint32(b)),
		Name: f.ReadString(ref.Offset + labelRowSize),
	}, nil
}

func decodeKey(f *pdb.File, ref pdb.RowRef) (*Key, error) {
	b, err := rowSpan(f, ref, keyRowSize, KindKey)
	if err != nil {
		return nil, err
	}
	return &Key{
		ID:   KeyID(binary.LittleEndian.Uint32(b)),
		Name: f.ReadString(ref.Offset + keyRowSize),
	}, nil
}

func decodeColor(f *pdb.File, ref pdb.RowRef) (*Color, error) {
	b, err := rowSpan(f, ref, colorRowSize, KindColor)
	if err != nil {
		return nil, err
	}
	return &Color{
		ID:   ColorID(binary.LittleEndian.Uint16(b[5:])),
		Name: f.ReadString(ref.Offset + colorRowSize),
	}, nil
}

func decodeArtwork(f *pdb.File, ref pdb.RowRef) (*Artwork, error) {
	b, err := rowSpan(f, ref, artworkRowSize, KindArtwork)
	if err != nil {
		return nil, err
	}
	return &Artwork{
		ID:   ArtworkID(binary.LittleEndian.Uint32(b)),
		Path: f.ReadString(ref.Offset + artworkRowSize),
	}, nil
}

func decodePlaylist(f *pdb.File, ref pdb.RowRef) (*Playlist, error) {
	b, err := rowSpan(f, ref, playlistTreeRowSize, KindPlaylist)
	if err != nil {
		return nil, err
	}
	return &Playlist{
		ParentID:  PlaylistID(binary.LittleEndian.Uint32(b[0:])),
		SortOrder: int(binary.LittleEndian.Uint32(b[8:])),
		ID:        PlaylistID(binary.LittleEndian.Uint32(b[12:])),
		IsFolder:  binary.LittleEndian.Uint32(b[16:]) != 0,
		Name:      f.ReadString(ref.Offset + playlistTreeRowSize),
	}, nil
}
