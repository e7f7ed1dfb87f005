// Package cratedigger reads the export databases that rekordbox writes to
// USB and SD media for Pioneer DJ players.
//
// An export database is a page-structured binary file holding the track
// catalog, its lookup tables (artists, albums, genres, labels, keys,
// colors, artwork) and the playlist tree. Open maps the file, validates
// its layout and indexes every table; afterwards records are materialized
// on demand and bulk columns are extracted in a single pass:
//
//	db, err := cratedigger.Open("/media/usb/PIONEER/rekordbox/export.pdb")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	track, err := db.GetTrack(42)
//	bpms, skipped, err := db.AllBPMs()
//
// Cue points live outside the export database in per-track analysis
// files; LoadCuePoints scans an analysis directory and makes them
// queryable by track.
//
// The handle is safe for concurrent readers. Malformed single records
// fail loudly with a RowError; bulk operations skip malformed rows and
// report how many were skipped.
package cratedigger
