package testutil

import "encoding/binary"

// TrackRow renders a full track row: the fixed head, the string offset
// table, and the string heap appended behind the head. Zero-value string
// fields encode as empty device strings.
type TrackRow struct {
	ID           uint32
	ArtistID     uint32
	AlbumID      uint32
	GenreID      uint32
	LabelID      uint32
	KeyID        uint32
	ColorID      uint8
	ArtworkID    uint32
	ComposerID   uint32
	OrigArtistID uint32
	RemixerID    uint32

	SampleRate  uint32
	FileSize    uint32
	Bitrate     uint32
	TrackNumber uint32
	BPM         float64
	DiscNumber  uint16
	PlayCount   uint16
	Year        uint16
	SampleDepth uint16
	Duration    uint16
	Rating      uint8

	ISRC        string
	DateAdded   string
	ReleaseDate string
	MixName     string
	AnalyzePath string
	AnalyzeDate string
	Comment     string
	Title       string
	Filename    string
	FilePath    string
}

const (
	trackHeadSize  = 136
	trackStringOfs = 94
	trackStrings   = 21
)

// Bytes renders the row. String offsets are relative to the row start.
func (r TrackRow) Bytes() []byte {
	head := make([]byte, trackHeadSize)
	put32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(head[off:], v) }
	put16 := func(off int, v uint16) { binary.LittleEndian.PutUint16(head[off:], v) }

	put32(8, r.SampleRate)
	put32(12, r.ComposerID)
	put32(16, r.FileSize)
	put32(28, r.ArtworkID)
	put32(32, r.KeyID)
	put32(36, r.OrigArtistID)
	put32(40, r.LabelID)
	put32(44, r.RemixerID)
	put32(48, r.Bitrate)
	put32(52, r.TrackNumber)
	put32(56, uint32(r.BPM*100+0.5))
	put32(60, r.GenreID)
	put32(64, r.AlbumID)
	put32(68, r.ArtistID)
	put32(72, r.ID)
	put16(76, r.DiscNumber)
	put16(78, r.PlayCount)
	put16(80, r.Year)
	put16(82, r.SampleDepth)
	put16(84, r.Duration)
	head[88] = r.ColorID
	head[89] = r.Rating

	// The string heap starts right after the head with a shared empty
	// string every unset offset points at.
	row := append(head, DeviceString("")...)
	ofs := [trackStrings]uint16{}
	for i := range ofs {
		ofs[i] = trackHeadSize
	}

	add := func(index int, s string) {
		if s == "" {
			return
		}
		ofs[index] = uint16(len(row))
		row = append(row, DeviceString(s)...)
	}
	add(0, r.ISRC)
	add(10, r.DateAdded)
	add(11, r.ReleaseDate)
	add(12, r.MixName)
	add(14, r.AnalyzePath)
	add(15, r.AnalyzeDate)
	add(16, r.Comment)
	add(17, r.Title)
	add(19, r.Filename)
	add(20, r.FilePath)

	for i, o := range ofs {
		binary.LittleEndian.PutUint16(row[trackStringOfs+2*i:], o)
	}
	return row
}

// TrackHead renders only the first n bytes of the fixed head, for rows
// that are deliberately cut short.
func (r TrackRow) TrackHead(n int) []byte {
	return r.Bytes()[:n]
}

// ArtistRow renders an artist row with a near name offset.
func ArtistRow(id uint32, name string) []byte {
	row := make([]byte, 10)
	binary.LittleEndian.PutUint16(row[0:], 0x60)
	binary.LittleEndian.PutUint32(row[4:], id)
	row[9] = 10
	return append(row, DeviceString(name)...)
}

// ArtistRowFar renders an artist row using the far u16 name offset.
func ArtistRowFar(id uint32, name string) []byte {
	row := make([]byte, 12)
	binary.LittleEndian.PutUint16(row[0:], 0x64)
	binary.LittleEndian.PutUint32(row[4:], id)
	binary.LittleEndian.PutUint16(row[10:], 12)
	return append(row, DeviceString(name)...)
}

// AlbumRow renders an album row with a near name offset.
func AlbumRow(id, artistID uint32, name string) []byte {
	row := make([]byte, 22)
	binary.LittleEndian.PutUint16(row[0:], 0x80)
	binary.LittleEndian.PutUint32(row[8:], artistID)
	binary.LittleEndian.PutUint32(row[12:], id)
	row[21] = 22
	return append(row, DeviceString(name)...)
}

// NameRow renders the shared identifier-plus-name layout of genre, label
// and artwork rows.
func NameRow(id uint32, name string) []byte {
	row := make([]byte, 4)
	binary.LittleEndian.PutUint32(row, id)
	return append(row, DeviceString(name)...)
}

// KeyRow renders a musical key row.
func KeyRow(id uint32, name string) []byte {
	row := make([]byte, 8)
	binary.LittleEndian.PutUint32(row[0:], id)
	binary.LittleEndian.PutUint32(row[4:], id)
	return append(row, DeviceString(name)...)
}

// ColorRow renders a color row.
func ColorRow(id uint16, name string) []byte {
	row := make([]byte, 8)
	binary.LittleEndian.PutUint16(row[5:], id)
	return append(row, DeviceString(name)...)
}

// PlaylistTreeRow renders one playlist tree entry.
func PlaylistTreeRow(id, parentID, sortOrder uint32, isFolder bool, name string) []byte {
	row := make([]byte, 20)
	binary.LittleEndian.PutUint32(row[0:], parentID)
	binary.LittleEndian.PutUint32(row[8:], sortOrder)
	binary.LittleEndian.PutUint32(row[12:], id)
	if isFolder {
		binary.LittleEndian.PutUint32(row[16:], 1)
	}
	return append(row, DeviceString(name)...)
}

// PlaylistEntryRow renders one playlist membership row.
func PlaylistEntryRow(entryIndex, trackID, playlistID uint32) []byte {
	row := make([]byte, 12)
	binary.LittleEndian.PutUint32(row[0:], entryIndex)
	binary.LittleEndian.PutUint32(row[4:], trackID)
	binary.LittleEndian.PutUint32(row[8:], playlistID)
	return row
}

// HistoryPlaylistRow renders one history playlist row.
func HistoryPlaylistRow(id uint32, name string) []byte {
	row := make([]byte, 4)
	binary.LittleEndian.PutUint32(row, id)
	return append(row, DeviceString(name)...)
}

// HistoryEntryRow renders one history membership row.
func HistoryEntryRow(trackID, playlistID, entryIndex uint32) []byte {
	row := make([]byte, 12)
	binary.LittleEndian.PutUint32(row[0:], trackID)
	binary.LittleEndian.PutUint32(row[4:], playlistID)
	binary.LittleEndian.PutUint32(row[8:], entryIndex)
	return row
}
