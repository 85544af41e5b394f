package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const thirdVideoURL = "https://www.youtube.com/watch?v=9bZkp7q19f0"

func testPlaylist() *PlaylistInfo {
	return &PlaylistInfo{
		ID:    testPlaylistID,
		Title: "Pets and rockets",
		Entries: []PlaylistEntry{
			{ID: testVideoID, Title: "Cats", URL: testVideoURL},
			{ID: "9bZkp7q19f0", Title: "Silent film", URL: thirdVideoURL},
			{ID: otherVideoID, Title: "Rockets", URL: otherVideoURL},
		},
	}
}

func TestLimitEntries(t *testing.T) {
	entries := testPlaylist().Entries

	assert.Equal(t, entries, LimitEntries(entries, 0, 0))
	assert.Equal(t, entries[1:], LimitEntries(entries, 1, 0))
	assert.Equal(t, entries[:2], LimitEntries(entries, 0, 2))
	assert.Equal(t, entries[1:2], LimitEntries(entries, 1, 1))
	assert.Equal(t, entries, LimitEntries(entries, -3, 10))
	assert.Nil(t, LimitEntries(entries, 3, 0))
}

func newPlaylistApp(t *testing.T) (*App, *fakeSource) {
	t.Helper()
	source := newFakeSource(t)
	source.playlist = testPlaylist()
	source.subtitles[testVideoURL] = catSubtitles
	source.subtitles[otherVideoURL] = rocketSubtitle
	return newTestApp(t, source, &fakeOpenAI{}), source
}

func TestIngestPlaylist(t *testing.T) {
	app, _ := newPlaylistApp(t)

	report, err := app.IngestPlaylist(context.Background(), "https://www.youtube.com/playlist?list="+testPlaylistID, PlaylistOptions{})
	require.NoError(t, err)
	defer report.Session.Close()

	assert.Equal(t, "Pets and rockets", report.Title)
	assert.Equal(t, testVideoID, report.SessionName())
	require.Len(t, report.Processed, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, thirdVideoURL, report.Failed[0].Entry.URL)
	assert.True(t, IsTranscriptionRefused(report.Failed[0].Err))

	assert.Equal(t, []string{testVideoURL, otherVideoURL}, report.Session.VideoURLs())
	assert.Len(t, report.Session.Metadata.Summaries, 2)

	count, err := report.Session.Store().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestIngestPlaylistNamedSession(t *testing.T) {
	app, _ := newPlaylistApp(t)

	report, err := app.IngestPlaylist(context.Background(), testPlaylistID, PlaylistOptions{
		SessionName: "mixed",
		MaxVideos:   1,
	})
	require.NoError(t, err)
	defer report.Session.Close()

	assert.Equal(t, "mixed", report.SessionName())
	assert.Len(t, report.Processed, 1)
	assert.True(t, app.Sessions().Exists("mixed"))
}

func TestIngestPlaylistStopOnError(t *testing.T) {
	app, source := newPlaylistApp(t)

	report, err := app.IngestPlaylist(context.Background(), testPlaylistID, PlaylistOptions{StopOnError: true})
	require.NoError(t, err)
	defer report.Session.Close()

	assert.Len(t, report.Processed, 1)
	assert.Len(t, report.Failed, 1)
	assert.Zero(t, source.subtitleCalls[otherVideoURL])
}

func TestIngestPlaylistSkipExisting(t *testing.T) {
	ctx := context.Background()
	app, source := newPlaylistApp(t)
	first := processTestVideo(t, app, testVideoURL)
	require.NoError(t, first.Close())
	callsBefore := source.subtitleCalls[testVideoURL]

	report, err := app.IngestPlaylist(ctx, testPlaylistID, PlaylistOptions{
		SessionName:  testVideoID,
		SkipExisting: true,
		StartIndex:   0,
	})
	require.NoError(t, err)
	defer report.Session.Close()

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, testVideoURL, report.Skipped[0].URL)
	assert.Equal(t, callsBefore, source.subtitleCalls[testVideoURL])
	assert.Equal(t, []string{testVideoURL, otherVideoURL}, report.Session.VideoURLs())
}

func TestIngestPlaylistNothingIngested(t *testing.T) {
	source := newFakeSource(t)
	source.playlist = testPlaylist()
	app := newTestApp(t, source, &fakeOpenAI{})

	report, err := app.IngestPlaylist(context.Background(), testPlaylistID, PlaylistOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no videos could be ingested")
	assert.Nil(t, report.Session)
	assert.Len(t, report.Failed, 3)
	assert.Empty(t, report.SessionName())
}

func TestIngestPlaylistResolveError(t *testing.T) {
	app := newTestApp(t, newFakeSource(t), &fakeOpenAI{})
	_, err := app.IngestPlaylist(context.Background(), testPlaylistID, PlaylistOptions{})
	assert.ErrorContains(t, err, "resolving playlist")
}
