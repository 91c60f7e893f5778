package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zinkereru/megakino/internal/domain"
	"github.com/zinkereru/megakino/internal/log"
	"github.com/zinkereru/megakino/internal/store"
)

func newTestEngine(t *testing.T, opts store.Options) (*Engine, *store.Bolt) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := NewEngine(s, log.NullLogger())
	require.NoError(t, e.Initialize())
	return e, s
}

func singleMovie() *domain.Movie {
	return &domain.Movie{
		ID:       "m-1",
		Title:    "X",
		Kind:     domain.KindMovie,
		Genre:    "Action",
		Video:    domain.Embedded([]byte("feature video bytes")),
		Poster:   domain.Embedded([]byte("poster bytes")),
		Backdrop: domain.Remote("https://cdn.example/backdrop.jpg"),
	}
}

func seriesEntry() *domain.Movie {
	return &domain.Movie{
		ID:    "s-1",
		Title: "The Long Haul",
		Kind:  domain.KindSeries,
		Seasons: []domain.Season{
			{
				Number: 1,
				Episodes: []domain.Episode{
					{ID: "e-1", Number: 1, Title: "Pilot", Video: domain.Embedded([]byte("episode one"))},
					{ID: "e-2", Number: 2, Title: "Fallout", Video: domain.Embedded([]byte("episode two"))},
				},
			},
			{
				Number: 2,
				Episodes: []domain.Episode{
					{ID: "e-3", Number: 1, Title: "Return"}, // no video uploaded yet
				},
			},
		},
	}
}

func TestSaveListHydrateRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(singleMovie()))

	records, err := e.ListMetadata()
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "m-1", rec.ID)
	assert.False(t, rec.HasEmbeddedAssets(), "metadata must carry no binary payload")
	assert.Nil(t, rec.Video)
	assert.Nil(t, rec.Poster)
	require.NotNil(t, rec.Backdrop)
	assert.Equal(t, "https://cdn.example/backdrop.jpg", rec.Backdrop.URL)

	full, err := e.Hydrate("m-1")
	require.NoError(t, err)
	require.NotNil(t, full.Video)
	assert.Equal(t, []byte("feature video bytes"), full.Video.Bytes)
	require.NotNil(t, full.Poster)
	assert.Equal(t, []byte("poster bytes"), full.Poster.Bytes)
	assert.Equal(t, "https://cdn.example/backdrop.jpg", full.Backdrop.URL)

	// Hydration must not leak bytes into the cache
	cached := e.Cached()
	require.Len(t, cached, 1)
	assert.False(t, cached[0].HasEmbeddedAssets())
}

func TestListNewestFirstAcrossRestart(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		require.NoError(t, e.Save(&domain.Movie{ID: id, Title: id, Kind: domain.KindMovie}))
	}

	records, err := e.ListMetadata()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"m-3", "m-2", "m-1"}, ids(records))

	// A fresh engine over the same store sees the same order
	e2 := NewEngine(s, log.NullLogger())
	records, err = e2.ListMetadata()
	require.NoError(t, err)
	assert.Equal(t, []string{"m-3", "m-2", "m-1"}, ids(records))
}

func TestSaveReplaceKeepsPosition(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		require.NoError(t, e.Save(&domain.Movie{
			ID: id, Title: id, Kind: domain.KindMovie,
			Video: domain.Embedded([]byte("old " + id)),
		}))
	}

	// Replace the middle entry with new metadata and a new blob
	require.NoError(t, e.Save(&domain.Movie{
		ID: "m-2", Title: "m-2 director's cut", Kind: domain.KindMovie,
		Video: domain.Embedded([]byte("new m-2")),
	}))

	records := e.Cached()
	assert.Equal(t, []string{"m-3", "m-2", "m-1"}, ids(records), "replace preserves position")
	assert.Equal(t, "m-2 director's cut", records[1].Title)

	// Old blob fully overwritten, not appended
	data, err := s.Blobs().Get("m-2/video")
	require.NoError(t, err)
	assert.Equal(t, []byte("new m-2"), data)

	full, err := e.Hydrate("m-2")
	require.NoError(t, err)
	assert.Equal(t, []byte("new m-2"), full.Video.Bytes)
}

func TestSaveReplaceDropsStaleBlobs(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(singleMovie()))

	// Replace with a version that carries no video at all
	require.NoError(t, e.Save(&domain.Movie{
		ID: "m-1", Title: "X, muted", Kind: domain.KindMovie,
		Poster: domain.Embedded([]byte("poster bytes")),
	}))

	full, err := e.Hydrate("m-1")
	require.NoError(t, err)
	assert.Nil(t, full.Video, "dropped asset must not resurface on hydration")
	require.NotNil(t, full.Poster)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1/poster"}, keys)

	// Switching an embedded asset to a remote URL drops its blob too
	require.NoError(t, e.Save(&domain.Movie{
		ID: "m-1", Title: "X, remote", Kind: domain.KindMovie,
		Video: domain.Remote("https://cdn.example/x.mp4"),
	}))

	keys, err = s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	full, err = e.Hydrate("m-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.mp4", full.Video.URL)
	assert.Nil(t, full.Poster)
}

func TestSaveReplaceDropsRemovedEpisodeBlobs(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(seriesEntry()))

	// Replace keeping only the first episode
	trimmed := seriesEntry()
	trimmed.Seasons = trimmed.Seasons[:1]
	trimmed.Seasons[0].Episodes = trimmed.Seasons[0].Episodes[:1]
	require.NoError(t, e.Save(trimmed))

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e-1/video"}, keys, "removed episode's blob is deleted with the replace")
}

func TestRemoveMovie(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(singleMovie()))
	require.NoError(t, e.Remove("m-1"))

	records, err := e.ListMetadata()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = e.Hydrate("m-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys, "movie blobs removed with the record")

	// Removing an unknown ID is a no-op
	require.NoError(t, e.Remove("m-1"))
}

func TestRemoveSeriesCascadesToEpisodeBlobs(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(seriesEntry()))

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"e-1/video", "e-2/video"}, keys)

	require.NoError(t, e.Remove("s-1"))

	keys, err = s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys, "episode blobs are not orphaned by a series delete")
}

func TestWipeAll(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(singleMovie()))
	require.NoError(t, e.Save(seriesEntry()))

	require.NoError(t, e.WipeAll())

	records, err := e.ListMetadata()
	require.NoError(t, err)
	assert.Empty(t, records)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestQuotaFailureLeavesEverythingUnchanged(t *testing.T) {
	e, _ := newTestEngine(t, store.Options{QuotaBytes: 64})

	small := &domain.Movie{
		ID: "m-1", Title: "Fits", Kind: domain.KindMovie,
		Video: domain.Embedded([]byte("tiny")),
	}
	require.NoError(t, e.Save(small))
	before, err := e.ListMetadata()
	require.NoError(t, err)

	big := &domain.Movie{
		ID: "m-2", Title: "Too Big", Kind: domain.KindMovie,
		Video: domain.Embedded(make([]byte, 1024)),
	}
	err = e.Save(big)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	after, err := e.ListMetadata()
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after), "no partial state after quota failure")

	_, err = e.Hydrate("m-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHydrateSeriesWithPartialBlobs(t *testing.T) {
	e, _ := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(seriesEntry()))

	full, err := e.Hydrate("s-1")
	require.NoError(t, err)
	require.Len(t, full.Seasons, 2)

	s1 := full.Seasons[0].Episodes
	require.NotNil(t, s1[0].Video)
	assert.Equal(t, []byte("episode one"), s1[0].Video.Bytes)
	require.NotNil(t, s1[1].Video)
	assert.Equal(t, []byte("episode two"), s1[1].Video.Bytes)

	// Missing blob leaves the asset unset, it never errors
	assert.Nil(t, full.Seasons[1].Episodes[0].Video)
}

func TestSweepRemovesOnlyOrphans(t *testing.T) {
	e, s := newTestEngine(t, store.Options{})

	require.NoError(t, e.Save(singleMovie()))

	// Simulate an orphan from a layout predating the delete cascade
	require.NoError(t, s.Blobs().Put("ghost-ep/video", []byte("stale")))

	removed, err := e.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1/video", "m-1/poster"}, keys)

	full, err := e.Hydrate("m-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("feature video bytes"), full.Video.Bytes)
}

func TestSplit(t *testing.T) {
	entry := seriesEntry()
	entry.Poster = domain.Embedded([]byte("series poster"))

	rec, blobs := split(entry)

	assert.False(t, rec.HasEmbeddedAssets())
	assert.Nil(t, rec.Poster)
	assert.Equal(t, map[string][]byte{
		"s-1/poster": []byte("series poster"),
		"e-1/video":  []byte("episode one"),
		"e-2/video":  []byte("episode two"),
	}, blobs)

	// The input entry is untouched
	assert.True(t, entry.HasEmbeddedAssets())
	assert.NotNil(t, entry.Seasons[0].Episodes[0].Video)
}

func ids(records []*domain.Movie) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
