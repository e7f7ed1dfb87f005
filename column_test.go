package cratedigger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daitomanabe/cratedigger"
	"github.com/daitomanabe/cratedigger/testutil"
)

func TestColumnsMatchRecords(t *testing.T) {
	db := openTestDatabase(t)

	ids, err := db.AllTrackIDs()
	require.NoError(t, err)

	bpms, skipped, err := db.AllBPMs()
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, bpms, len(ids))

	durations, _, err := db.AllDurations()
	require.NoError(t, err)
	years, _, err := db.AllYears()
	require.NoError(t, err)
	ratings, _, err := db.AllRatings()
	require.NoError(t, err)
	bitrates, _, err := db.AllBitrates()
	require.NoError(t, err)
	sampleRates, _, err := db.AllSampleRates()
	require.NoError(t, err)
	playCounts, _, err := db.AllPlayCounts()
	require.NoError(t, err)

	// Columns are ordered by ascending identifier, so position i always
	// belongs to ids[i].
	for i, id := range ids {
		track, err := db.GetTrack(id)
		require.NoError(t, err)

		assert.InDelta(t, track.BPM, bpms[i], 0.001)
		assert.Equal(t, track.DurationSeconds, durations[i])
		assert.Equal(t, track.Year, years[i])
		assert.Equal(t, track.Rating, ratings[i])
		assert.Equal(t, track.Bitrate, bitrates[i])
		assert.Equal(t, track.SampleRate, sampleRates[i])
		assert.Equal(t, track.PlayCount, playCounts[i])
	}
}

// trackRowTailOffset places a row so close to the page tail that the
// identifier is readable but the full fixed head is not.
const trackRowTailOffset = testutil.DefaultPageSize - 40 - 100

func buildImageWithShortRow() []byte {
	return testutil.NewDatabaseBuilder().
		AddTable(0, testutil.NewPage().
			Row(testutil.TrackRow{ID: 1, BPM: 120, Duration: 300}.Bytes()).
			RowAt(trackRowTailOffset, testutil.TrackRow{ID: 99, BPM: 99}.TrackHead(76))).
		Bytes()
}

func TestColumnsSkipShortRows(t *testing.T) {
	db, err := cratedigger.OpenBuffer(buildImageWithShortRow())
	require.NoError(t, err)
	defer db.Close()

	// The cut row still indexes: its identifier field is intact.
	n, err := db.TrackCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	bpms, skipped, err := db.AllBPMs()
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, bpms, 1)
	assert.InDelta(t, 120.0, bpms[0], 0.001)

	// Materializing the same row fails loudly.
	_, err = db.GetTrack(99)
	require.Error(t, err)
	assert.ErrorIs(t, err, cratedigger.ErrCorrupt)

	var rowErr *cratedigger.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, cratedigger.KindTrack, rowErr.Kind)
}

func TestFindTracksByRanges(t *testing.T) {
	db := openTestDatabase(t)

	hits, err := db.FindTracksByBPMRange(120, 130)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, hits)

	hits, err = db.FindTracksByBPMRange(100, 200)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1, 2}, hits)

	hits, err = db.FindTracksByBPMRange(60, 70)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = db.FindTracksByDurationRange(400, 500)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{2}, hits)

	hits, err = db.FindTracksByYearRange(1985, 1990)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, hits)

	hits, err = db.FindTracksByRating(4)
	require.NoError(t, err)
	assert.Equal(t, []cratedigger.TrackID{1}, hits)
}
