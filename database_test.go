package cratedigger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daitomanabe/cratedigger"
	"github.com/daitomanabe/cratedigger/testutil"
)

// buildExportImage assembles a small but fully populated database: two
// pages of tracks (with a duplicate identifier split across them), every
// lookup table, a playlist tree with one folder, and a play history.
func buildExportImage() []byte {
	return testutil.NewDatabaseBuilder().
		AddTable(0, // tracks
			testutil.NewPage().
				Row(testutil.TrackRow{
					ID:          1,
					ArtistID:    10,
					AlbumID:     20,
					GenreID:     30,
					LabelID:     40,
					KeyID:       50,
					ColorID:     2,
					ArtworkID:   60,
					ComposerID:  11,
					SampleRate:  44100,
					SampleDepth: 16,
					FileSize:    9_000_000,
					Bitrate:     320,
					TrackNumber: 1,
					BPM:         127.5,
					DiscNumber:  1,
					PlayCount:   7,
					Year:        1987,
					Duration:    372,
					Rating:      5,
					ISRC:        "USUR18700001",
					DateAdded:   "2025-11-02",
					Comment:     "closing track",
					Title:       "Strings of Life",
					Filename:    "strings.mp3",
					FilePath:    "/Contents/Rhythim/strings.mp3",
				}.Bytes()).
				Row(testutil.TrackRow{
					ID:       2,
					ArtistID: 11,
					GenreID:  30,
					BPM:      174,
					Year:     2001,
					Duration: 421,
					Rating:   3,
					Title:    "Icarus",
				}.Bytes()),
			testutil.NewPage().
				// Same identifier as page one; later pages win.
				Row(testutil.TrackRow{
					ID:       1,
					BPM:      127.5,
					Year:     1987,
					Rating:   5,
					Title:    "Strings of Life (Original Mix)",
					FilePath: "/Contents/Rhythim/strings.mp3",
				}.Bytes())).
		AddTable(2, testutil.NewPage(). // artists
						Row(testutil.ArtistRow(10, "Derrick May")).
						Row(testutil.ArtistRowFar(11, "Rhythim is Rhythim"))).
		AddTable(3, testutil.NewPage(). // albums
						Row(testutil.AlbumRow(20, 10, "Innovator"))).
		AddTable(1, testutil.NewPage(). // genres
						Row(testutil.NameRow(30, "Techno"))).
		AddTable(4, testutil.NewPage(). // labels
						Row(testutil.NameRow(40, "Transmat"))).
		AddTable(5, testutil.NewPage(). // keys
						Row(testutil.KeyRow(50, "Am"))).
		AddTable(6, testutil.NewPage(). // colors
						Row(testutil.ColorRow(2, "Pink"))).
		AddTable(13, testutil.NewPage(). // artwork
						Row(testutil.NameRow(60, "/PIONEER/Artwork/00001/a1.jpg"))).
		AddTable(7, testutil.NewPage(). // playlist tree
						Row(testutil.PlaylistTreeRow(1, 0, 0, true, "Crates")).
						Row(testutil.PlaylistTreeRow(2, 1, 0, false, "Classics")).
						Row(testutil.PlaylistTreeRow(3, 0, 1, false, "All Nighters"))).
		AddTable(8, testutil.NewPage(). // playlist entries
						Row(testutil.PlaylistEntryRow(0, 2, 2)).
						Row(testutil.PlaylistEntryRow(1, 1, 2))).
		AddTable(11, testutil.NewPage(). // history playlists
						Row(testutil.HistoryPlaylistRow(1, "HISTORY 001"))).
		AddTable(12, testutil.NewPage(). // history entries
						Row(testutil.HistoryEntryRow(1, 1, 0))).
		Bytes()
}

func openTestDatabase(t *testing.T) *cratedigger.Database {
	t.Helper()
	db, err := cratedigger.OpenBuffer(buildExportImage())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCounts(t *testing.T) {
	db := openTestDatabase(t)

	tests := []struct {
		name  string
		count func() (int, error)
		want  int
	}{
		{"tracks", db.TrackCount, 2},
		{"artists", db.ArtistCount, 2},
		{"albums", db.AlbumCount, 1},
		{"genres", db.GenreCount, 1},
		{"labels", db.LabelCount, 1},
		{"keys", db.KeyCount, 1},
		{"colors", db.ColorCount, 1},
		{"artwork", db.ArtworkCount, 1},
		{"playlists", db.PlaylistCount, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.count()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestGetTrack(t *testing.T) {
	db := openTestDatabase(t)

	track, err := db.GetTrack(2)
	require.NoError(t, err)

	assert.Equal(t, cratedigger.TrackID(2), track.ID)
	assert.Equal(t, "Icarus", track.Title)
	assert.Equal(t, cratedigger.ArtistID(11), track.ArtistID)
	assert.Equal(t, cratedigger.GenreID(30), track.GenreID)
	assert.InDelta(t, 174.0, track.BPM, 0.001)
	assert.Equal(t, 2001, track.Year)
	assert.Equal(t, 421, track.DurationSeconds)
	assert.Equal(t, 3, track.Rating)
}

func TestGetTrackAllFields(t *testing.T) {
	db := openTestDatabase(t)

	// Identifier 1 appears on two pages; the later page wins, so only its
	// fields are visible.
	track, err := db.GetTrack(1)
	require.NoError(t, err)
	assert.Equal(t, "Strings of Life (Original Mix)", track.Title)
	assert.InDelta(t, 127.5, track.BPM, 0.001)
	assert.Equal(t, 1987, track.Year)

	// The first page's copy carries the full field set; read it through
	// a single-page image to pin every decoded offset.
	single, err := cratedigger.OpenBuffer(testutil.NewDatabaseBuilder().
		AddTable(0, testutil.NewPage().Row(testutil.TrackRow{
			ID:          1,
			ArtistID:    10,
			AlbumID:     20,
			GenreID:     30,
			LabelID:     40,
			KeyID:       50,
			ColorID:     2,
			ArtworkID:   60,
			ComposerID:  11,
			SampleRate:  44100,
			SampleDepth: 16,
			FileSize:    9_000_000,
			Bitrate:     320,
			TrackNumber: 1,
			BPM:         127.5,
			DiscNumber:  1,
			PlayCount:   7,
			Year:        1987,
			Duration:    372,
			Rating:      5,
			ISRC:        "USUR18700001",
			DateAdded:   "2025-11-02",
			Comment:     "closing track",
			Title:       "Strings of Life",
			Filename:    "strings.mp3",
			FilePath:    "/Contents/Rhythim/strings.mp3",
		}.Bytes())).
		Bytes())
	require.NoError(t, err)
	defer single.Close()

	track, err = single.GetTrack(1)
	require.NoError(t, err)

	assert.Equal(t, cratedigger.ArtistID(10), track.ArtistID)
	assert.Equal(t, cratedigger.AlbumID(20), track.AlbumID)
	assert.Equal(t, cratedigger.GenreID(30), track.GenreID)
	assert.Equal(t, cratedigger.LabelID(40), track.LabelID)
	assert.Equal(t, cratedigger.KeyID(50), track.KeyID)
	assert.Equal(t, cratedigger.ColorID(2), track.ColorID)
	assert.Equal(t, cratedigger.ArtworkID(60), track.ArtworkID)
	assert.Equal(t, cratedigger.ArtistID(11), track.ComposerID)
	assert.Equal(t, 44100, track.SampleRate)
	assert.Equal(t, 16, track.SampleDepth)
	assert.Equal(t, int64(9_000_000), track.FileSize)
	assert.Equal(t, 320, track.Bitrate)
	assert.Equal(t, 1, track.TrackNumber)
	assert.Equal(t, 1, track.DiscNumber)
	assert.Equal(t, 7, track.PlayCount)
	assert.Equal(t, "USUR18700001", track.ISRC)
	assert.Equal(t, "2025-11-02", track.DateAdded)
	assert.Equal(t, "closing track", track.Comment)
	assert.Equal(t, "strings.mp3", track.Filename)
	assert.Equal(t, "/Contents/Rhythim/strings.mp3", track.FilePath)
}

func TestGetTrackNotFound(t *testing.T) {
	db := openTestDatabase(t)

	_, err := db.GetTrack(404)
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)
}

func TestGetArtist(t *testing.T) {
	db := openTestDatabase(t)

	near, err := db.GetArtist(10)
	require.NoError(t, err)
	assert.Equal(t, "Derrick May", near.Name)

	far, err := db.GetArtist(11)
	require.NoError(t, err)
	assert.Equal(t, "Rhythim is Rhythim", far.Name)
}

func TestGetLookupRecords(t *testing.T) {
	db := openTestDatabase(t)

	album, err := db.GetAlbum(20)
	require.NoError(t, err)
	assert.Equal(t, "Innovator", album.Name)
	assert.Equal(t, cratedigger.ArtistID(10), album.ArtistID)

	genre, err := db.GetGenre(30)
	require.NoError(t, err)
	assert.Equal(t, "Techno", genre.Name)

	label, err := db.GetLabel(40)
	require.NoError(t, err)
	assert.Equal(t, "Transmat", label.Name)

	key, err := db.GetKey(50)
	require.NoError(t, err)
	assert.Equal(t, "Am", key.Name)

	color, err := db.GetColor(2)
	require.NoError(t, err)
	assert.Equal(t, "Pink", color.Name)

	art, err := db.GetArtwork(60)
	require.NoError(t, err)
	assert.Equal(t, "/PIONEER/Artwork/00001/a1.jpg", art.Path)

	_, err = db.GetAlbum(999)
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)
}

func TestAllIDsAscendingAndResolvable(t *testing.T) {
	db := openTestDatabase(t)

	ids, err := db.AllTrackIDs()
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1, 2}, ids)

	for _, id := range ids {
		_, err := db.GetTrack(id)
		assert.NoError(t, err)
	}

	artistIDs, err := db.AllArtistIDs()
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.ArtistID{10, 11}, artistIDs)

	playlistIDs, err := db.AllPlaylistIDs()
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.PlaylistID{1, 2, 3}, playlistIDs)
}

func TestPlaylists(t *testing.T) {
	db := openTestDatabase(t)

	folder, err := db.GetPlaylist(1)
	require.NoError(t, err)
	assert.True(t, folder.IsFolder)
	assert.Equal(t, "Crates", folder.Name)

	list, err := db.GetPlaylist(2)
	require.NoError(t, err)
	assert.False(t, list.IsFolder)
	assert.Equal(t, cratedigger.PlaylistID(1), list.ParentID)

	// Entry order, not identifier order.
	tracks, err := db.PlaylistTracks(2)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{2, 1}, tracks)

	root, err := db.PlaylistChildren(0)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.PlaylistID{1, 3}, root)

	children, err := db.PlaylistChildren(1)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.PlaylistID{2}, children)

	// A known playlist with no entries is empty, not missing.
	empty, err := db.PlaylistTracks(3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = db.PlaylistTracks(404)
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)
}

func TestHistory(t *testing.T) {
	db := openTestDatabase(t)

	id, err := db.FindHistoryPlaylist("HISTORY 001")
	require.NoError(t, err)

	tracks, err := db.HistoryPlaylistTracks(id)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, tracks)

	_, err = db.FindHistoryPlaylist("HISTORY 999")
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)

	_, err = db.HistoryPlaylistTracks(999)
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)
}

func TestFindTracksByForeignKey(t *testing.T) {
	db := openTestDatabase(t)

	byGenre, err := db.FindTracksByGenre(30)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1, 2}, byGenre)

	byArtist, err := db.FindTracksByArtist(10)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, byArtist)

	// Composer credits count as artist references.
	byComposer, err := db.FindTracksByArtist(11)
	require.NoError(t, err)
	assert.Contains(t, byComposer, cratedigger.TrackID(1))
	assert.Contains(t, byComposer, cratedigger.TrackID(2))

	byAlbum, err := db.FindTracksByAlbum(20)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, byAlbum)

	none, err := db.FindTracksByGenre(999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindByName(t *testing.T) {
	db := openTestDatabase(t)

	byTitle, err := db.FindTracksByTitle("iCARUS")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{2}, byTitle)

	byTitle, err = db.FindTracksByTitle("strings of life (ORIGINAL mix)")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, byTitle)

	// Track 1's first copy carried the shorter title; the rewritten page
	// wins, so the old title must not resolve.
	stale, err := db.FindTracksByTitle("Strings of Life")
	require.NoError(t, err)
	assert.Empty(t, stale)

	artists, err := db.FindArtistsByName("derrick may")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.ArtistID{10}, artists)

	// Far-offset name rows resolve too.
	artists, err = db.FindArtistsByName("RHYTHIM IS RHYTHIM")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.ArtistID{11}, artists)

	albums, err := db.FindAlbumsByName("innovator")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.AlbumID{20}, albums)

	genres, err := db.FindGenresByName("TECHNO")
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.GenreID{30}, genres)

	none, err := db.FindTracksByTitle("no such title")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOversizedEntryIndexesDropped(t *testing.T) {
	// Ordering values near 2^32 must not drive dense slot allocation;
	// rows carrying them are dropped and the rest of the file still loads.
	img := testutil.NewDatabaseBuilder().
		AddTable(0, testutil.NewPage().
			Row(testutil.TrackRow{ID: 1, Title: "Jaguar"}.Bytes())).
		AddTable(7, testutil.NewPage().
			Row(testutil.PlaylistTreeRow(2, 0, 0, false, "Classics")).
			Row(testutil.PlaylistTreeRow(5, 0, 0xfffffff0, false, "Broken"))).
		AddTable(8, testutil.NewPage().
			Row(testutil.PlaylistEntryRow(0, 1, 2)).
			Row(testutil.PlaylistEntryRow(0xfffffff0, 1, 2))).
		AddTable(11, testutil.NewPage().
			Row(testutil.HistoryPlaylistRow(1, "HISTORY 001"))).
		AddTable(12, testutil.NewPage().
			Row(testutil.HistoryEntryRow(1, 1, 0xfffffff0))).
		Bytes()

	db, err := cratedigger.OpenBuffer(img)
	require.NoError(t, err)
	defer db.Close()

	tracks, err := db.PlaylistTracks(2)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, tracks)

	_, err = db.GetPlaylist(5)
	assert.ErrorIs(t, err, cratedigger.ErrNotFound)

	history, err := db.HistoryPlaylistTracks(1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestOpenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.pdb")
	require.NoError(t, os.WriteFile(path, buildExportImage(), 0o600))

	for _, tt := range []struct {
		name string
		opts []cratedigger.Option
	}{
		{name: "mapped"},
		{name: "resident", opts: []cratedigger.Option{cratedigger.WithMmapDisabled()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			db, err := cratedigger.Open(path, tt.opts...)
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, path, db.SourcePath())
			n, err := db.TrackCount()
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := cratedigger.Open(filepath.Join(t.TempDir(), "missing.pdb"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, cratedigger.ErrCorrupt)
}

func TestOpenCorruptBuffer(t *testing.T) {
	_, err := cratedigger.OpenBuffer([]byte{1, 2, 3})
	assert.ErrorIs(t, err, cratedigger.ErrCorrupt)

	img := buildExportImage()
	_, err = cratedigger.OpenBuffer(img[:len(img)-10])
	assert.ErrorIs(t, err, cratedigger.ErrTruncated)
}

func TestEmptyTables(t *testing.T) {
	db, err := cratedigger.OpenBuffer(testutil.NewDatabaseBuilder().
		AddTable(0, testutil.NewPage()).
		Bytes())
	require.NoError(t, err)
	defer db.Close()

	n, err := db.TrackCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := db.AllTrackIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	bpms, skipped, err := db.AllBPMs()
	require.NoError(t, err)
	assert.Empty(t, bpms)
	assert.Zero(t, skipped)
}

func TestUseAfterClose(t *testing.T) {
	db := openTestDatabase(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close()) // idempotent

	_, err := db.TrackCount()
	assert.ErrorIs(t, err, cratedigger.ErrClosed)

	_, err = db.GetTrack(1)
	assert.ErrorIs(t, err, cratedigger.ErrClosed)

	_, err = db.AllTrackIDs()
	assert.ErrorIs(t, err, cratedigger.ErrClosed)

	_, _, err = db.AllBPMs()
	assert.ErrorIs(t, err, cratedigger.ErrClosed)

	_, err = db.PlaylistTracks(2)
	assert.ErrorIs(t, err, cratedigger.ErrClosed)

	err = db.LoadCuePoints(t.TempDir())
	assert.ErrorIs(t, err, cratedigger.ErrClosed)
}

func TestConcurrentReads(t *testing.T) {
	db := openTestDatabase(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if _, err := db.GetTrack(1); err != nil {
					t.Error(err)
					return
				}
				if _, _, err := db.AllBPMs(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
