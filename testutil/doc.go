// Package testutil builds synthetic export database images for tests.
//
// This package is intended for use in tests and benchmarks only. It
// mirrors the on-disk layout of rekordbox export files: a fixed header,
// a table directory, and per-table page chains whose row directories
// grow down from the page tail.
//
// # Building a database image
//
//	data := testutil.NewDatabaseBuilder().
//		AddTable(0, testutil.NewPage().
//			Row(testutil.TrackRow{ID: 1, Title: "Strings of Life"}.Bytes())).
//		AddTable(2, testutil.NewPage().
//			Row(testutil.ArtistRow(10, "Derrick May"))).
//		Bytes()
//
// # String encodings
//
//	testutil.ShortASCII("Techno")
//	testutil.LongASCII(strings.Repeat("x", 200))
//	testutil.LongUTF16("こんにちは")
package testutil
