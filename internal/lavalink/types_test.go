package lavalink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avask/chorus/internal/music"
)

func TestPlayerUpdateStopSendsExplicitNull(t *testing.T) {
	var track *string
	data, err := json.Marshal(playerUpdate{EncodedTrack: &track})
	require.NoError(t, err)
	assert.JSONEq(t, `{"encodedTrack":null}`, string(data))
}

func TestPlayerUpdateOmitsUnsetFields(t *testing.T) {
	paused := true
	data, err := json.Marshal(playerUpdate{Paused: &paused})
	require.NoError(t, err)
	assert.JSONEq(t, `{"paused":true}`, string(data))
}

func TestPlayerUpdatePlayCarriesTrackAndVolume(t *testing.T) {
	encoded := "abc123"
	track := &encoded
	volume := 70
	data, err := json.Marshal(playerUpdate{EncodedTrack: &track, Volume: &volume})
	require.NoError(t, err)
	assert.JSONEq(t, `{"encodedTrack":"abc123","volume":70}`, string(data))
}

func TestWireTrackConversion(t *testing.T) {
	raw := wireTrack{
		Encoded: "enc",
		Info: wireTrackInfo{
			Title:      " Song ",
			Author:     "Artist",
			Length:     183000,
			URI:        "https://example.com/t",
			SourceName: "youtube",
			IsSeekable: true,
		},
	}

	track := raw.toTrack()
	assert.Equal(t, "enc", track.Encoded)
	assert.Equal(t, "Song", track.Title)
	assert.Equal(t, "Artist", track.Author)
	assert.Equal(t, int64(183), int64(track.Duration.Seconds()))
	assert.True(t, track.Seekable)

	raw.Info.IsStream = true
	assert.False(t, raw.toTrack().Seekable)
}

func TestLoadResponseDecoding(t *testing.T) {
	payload := []byte(`{
		"loadType": "playlist",
		"data": {
			"info": {"name": "Mix"},
			"tracks": [{"encoded": "e1", "info": {"title": "One"}}]
		}
	}`)

	var resp loadResponse
	require.NoError(t, json.Unmarshal(payload, &resp))
	require.Equal(t, "playlist", resp.LoadType)

	var playlist wirePlaylist
	require.NoError(t, json.Unmarshal(resp.Data, &playlist))
	assert.Equal(t, "Mix", playlist.Info.Name)
	require.Len(t, playlist.Tracks, 1)
	assert.Equal(t, "e1", playlist.Tracks[0].Encoded)
}

func TestEndReasonStringsMatchEngine(t *testing.T) {
	assert.Equal(t, music.EndReasonFinished, music.EndReason("finished"))
	assert.Equal(t, music.EndReasonStopped, music.EndReason("stopped"))
	assert.Equal(t, music.EndReasonLoadFailed, music.EndReason("loadFailed"))
}
