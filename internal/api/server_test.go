package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zinkereru/megakino/internal/catalog"
	"github.com/zinkereru/megakino/internal/domain"
	"github.com/zinkereru/megakino/internal/log"
	"github.com/zinkereru/megakino/internal/store"
)

func newTestServer(t *testing.T, opts store.Options) *httptest.Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	engine := catalog.NewEngine(s, log.NullLogger())
	require.NoError(t, engine.Initialize())

	srv := httptest.NewServer(NewRouter(engine, log.NullLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func postEntry(t *testing.T, srv *httptest.Server, entry *domain.Movie) string {
	t.Helper()
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/movies", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestCreateListAndHydrate(t *testing.T) {
	srv := newTestServer(t, store.Options{})

	id := postEntry(t, srv, &domain.Movie{
		Title:  "Wire Test",
		Kind:   domain.KindMovie,
		Genre:  "Sci-Fi",
		Video:  domain.Embedded([]byte("video payload")),
		Poster: domain.Remote("https://cdn.example/poster.jpg"),
	})

	// Listing returns metadata only: the embedded video is stripped
	resp, err := http.Get(srv.URL + "/movies")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []*domain.Movie
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Nil(t, records[0].Video)
	assert.Equal(t, "https://cdn.example/poster.jpg", records[0].Poster.URL)

	// Hydration returns the original bytes
	resp, err = http.Get(srv.URL + "/movies/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var full domain.Movie
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&full))
	require.NotNil(t, full.Video)
	assert.Equal(t, []byte("video payload"), full.Video.Bytes)
}

func TestHydrateUnknownIs404(t *testing.T) {
	srv := newTestServer(t, store.Options{})

	resp, err := http.Get(srv.URL + "/movies/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuotaMapsToInsufficientStorage(t *testing.T) {
	srv := newTestServer(t, store.Options{QuotaBytes: 16})

	payload, err := json.Marshal(&domain.Movie{
		Title: "Too Big",
		Kind:  domain.KindMovie,
		Video: domain.Embedded(make([]byte, 1024)),
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/movies", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
}

func TestClientRoundTrip(t *testing.T) {
	srv := newTestServer(t, store.Options{})
	client := NewClient(srv.URL, log.NullLogger())
	ctx := t.Context()

	entry := &domain.Movie{
		Title: "Remote Variant",
		Kind:  domain.KindSeries,
		Seasons: []domain.Season{
			{Number: 1, Episodes: []domain.Episode{
				{ID: "e-1", Number: 1, Title: "Pilot", Video: domain.Embedded([]byte("episode bytes"))},
			}},
		},
	}
	require.NoError(t, client.Create(ctx, entry))
	require.NotEmpty(t, entry.ID)

	records, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasEmbeddedAssets())

	full, err := client.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, full.Seasons, 1)
	assert.Equal(t, []byte("episode bytes"), full.Seasons[0].Episodes[0].Video.Bytes)

	// Update replaces in place
	entry.Title = "Remote Variant, renamed"
	require.NoError(t, client.Update(ctx, entry))
	records, err = client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Remote Variant, renamed", records[0].Title)

	// Remote errors carry the domain taxonomy
	_, err = client.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, client.Delete(ctx, entry.ID))
	require.NoError(t, client.Wipe(ctx))
	records, err = client.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
