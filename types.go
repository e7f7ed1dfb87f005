package cratedigger

// Identifier types for the entity kinds stored in an export database.
//
// Each kind gets its own 32-bit type so that a TrackID cannot be passed
// where an ArtistID is expected. Foreign-key fields on records keep these
// raw identifiers and are never resolved to records automatically; a zero
// identifier means "no reference".
type (
	TrackID    uint32
	ArtistID   uint32
	AlbumID    uint32
	GenreID    uint32
	LabelID    uint32
	KeyID      uint32
	ColorID    uint32
	ArtworkID  uint32
	PlaylistID uint32
)

// Kind names an entity kind, for logging and generic lookups.
type Kind uint8

const (
	KindTrack Kind = iota
	KindArtist
	KindAlbum
	KindGenre
	KindLabel
	KindKey
	KindColor
	KindArtwork
	KindPlaylist
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindArtist:
		return "artist"
	case KindAlbum:
		return "album"
	case KindGenre:
		return "genre"
	case KindLabel:
		return "label"
	case KindKey:
		return "key"
	case KindColor:
		return "color"
	case KindArtwork:
		return "artwork"
	case KindPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}
