package cratedigger

import "encoding/binary"

// Bulk column extraction. Each call walks the track index in ascending
// identifier order and reads exactly one fixed-layout field per row, so a
// column for tens of thousands of tracks stays a single tight pass over
// the page buffer. Rows whose fixed extent does not fit their page are
// skipped and counted instead of failing the whole column.

func extractTrackColumn[T any](db *Database, read func(b []byte) T) ([]T, int, error) {
	if err := db.rlock(); err != nil {
		return nil, 0, err
	}
	defer db.mu.RUnlock()

	out := make([]T, 0, db.idx.tracks.count())
	skipped := 0
	it := db.idx.tracks.ids.Iterator()
	for it.HasNext() {
		loc, _ := db.idx.tracks.lookup(it.Next())
		b, err := rowSpan(db.file, loc.ref(), trackRowSize, KindTrack)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, read(b))
	}
	return out, skipped, nil
}

func trackBPM(b []byte) float64 {
	return float64(binary.LittleEndian.Uint32(b[56:])) / 100
}

// AllBPMs returns the tempo of every readable track in ascending track
// identifier order, plus the number of rows skipped as malformed.
func (db *Database) AllBPMs() ([]float64, int, error) {
	return extractTrackColumn(db, trackBPM)
}

// AllDurations returns every track duration in seconds.
func (db *Database) AllDurations() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int {
		return int(binary.LittleEndian.Uint16(b[84:]))
	})
}

// AllYears returns every track release year.
func (db *Database) AllYears() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int {
		return int(binary.LittleEndian.Uint16(b[80:]))
	})
}

// AllRatings returns every track rating (0-5).
func (db *Database) AllRatings() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int { return int(b[89]) })
}

// AllBitrates returns every track bitrate in kbps.
func (db *Database) AllBitrates() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int {
		return int(binary.LittleEndian.Uint32(b[48:]))
	})
}

// AllSampleRates returns every track sample rate in Hz.
func (db *Database) AllSampleRates() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int {
		return int(binary.LittleEndian.Uint32(b[8:]))
	})
}

// AllPlayCounts returns every track play count.
func (db *Database) AllPlayCounts() ([]int, int, error) {
	return extractTrackColumn(db, func(b []byte) int {
		return int(binary.LittleEndian.Uint16(b[78:]))
	})
}

// Range scans. These reuse the same one-field-per-row walk; malformed
// rows are silently skipped, matching the bulk extraction policy.

func (db *Database) findTracks(match func(b []byte) bool) ([]TrackID, error) {
	if err := db.rlock(); err != nil {
		return nil, err
	}
	defer db.mu.RUnlock()

	var out []TrackID
	it := db.idx.tracks.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		loc, _ := db.idx.tracks.lookup(id)
		b, err := rowSpan(db.file, loc.ref(), trackRowSize, KindTrack)
		if err != nil {
			continue
		}
		if match(b) {
			out = append(out, TrackID(id))
		}
	}
	return out, nil
}

// FindTracksByBPMRange returns the tracks whose tempo lies in [min, max].
func (db *Database) FindTracksByBPMRange(min, max float64) ([]TrackID, error) {
	return db.findTracks(func(b []byte) bool {
		bpm := trackBPM(b)
		return bpm >= min && bpm <= max
	})
}

// FindTracksByDurationRange returns the tracks whose duration in seconds
// lies in [min, max].
func (db *Database) FindTracksByDurationRange(min, max int) ([]TrackID, error) {
	return db.findTracks(func(b []byte) bool {
		d := int(binary.LittleEndian.Uint16(b[84:]))
		return d >= min && d <= max
	})
}

// FindTracksByYearRange returns the tracks released in [min, max].
func (db *Database) FindTracksByYearRange(min, max int) ([]TrackID, error) {
	return db.findTracks(func(b []byte) bool {
		y := int(binary.LittleEndian.Uint16(b[80:]))
		return y >= min && y <= max
	})
}

// FindTracksByRating returns the tracks rated at least min stars.
func (db *Database) FindTracksByRating(min int) ([]TrackID, error) {
	return db.findTracks(func(b []byte) bool { return int(b[89]) >= min })
}
