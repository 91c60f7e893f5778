package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zinkereru/megakino/internal/domain"
	bolt "go.etcd.io/bbolt"
)

func openTest(t *testing.T, opts Options) *Bolt {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openTest(t, Options{})

	rec := &domain.Movie{ID: "m-1", Title: "Heat", Kind: domain.KindMovie, Genre: "Action"}
	require.NoError(t, s.Metadata().Put(rec))

	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Heat", records[0].Title)
	assert.NotZero(t, records[0].Seq)

	require.NoError(t, s.Metadata().Delete("m-1"))
	records, err = s.Metadata().GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	// Deleting an absent ID is a no-op
	require.NoError(t, s.Metadata().Delete("m-1"))
}

func TestMetadataSeqPreservedOnReplace(t *testing.T) {
	s := openTest(t, Options{})

	require.NoError(t, s.Metadata().Put(&domain.Movie{ID: "m-1", Title: "First", Kind: domain.KindMovie}))
	require.NoError(t, s.Metadata().Put(&domain.Movie{ID: "m-2", Title: "Second", Kind: domain.KindMovie}))

	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	seqs := map[string]uint64{}
	for _, r := range records {
		seqs[r.ID] = r.Seq
	}
	assert.Greater(t, seqs["m-2"], seqs["m-1"])

	// Replacing keeps the original sequence
	require.NoError(t, s.Metadata().Put(&domain.Movie{ID: "m-1", Title: "First, edited", Kind: domain.KindMovie}))
	records, err = s.Metadata().GetAll()
	require.NoError(t, err)
	for _, r := range records {
		if r.ID == "m-1" {
			assert.Equal(t, seqs["m-1"], r.Seq)
			assert.Equal(t, "First, edited", r.Title)
		}
	}
}

func TestMetadataRejectsEmbeddedBytes(t *testing.T) {
	s := openTest(t, Options{})

	rec := &domain.Movie{
		ID:     "m-1",
		Title:  "Smuggler",
		Kind:   domain.KindMovie,
		Poster: domain.Embedded([]byte{1, 2, 3}),
	}
	err := s.Metadata().Put(rec)
	require.ErrorIs(t, err, domain.ErrStorage)

	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBlobRoundTrip(t *testing.T) {
	s := openTest(t, Options{})

	require.NoError(t, s.Blobs().Put("m-1/video", []byte("mp4 bytes")))
	require.NoError(t, s.Blobs().Put("m-1/poster", []byte("jpg bytes")))

	data, err := s.Blobs().Get("m-1/video")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4 bytes"), data)

	// Absent key is nil, not an error
	data, err = s.Blobs().Get("nope")
	require.NoError(t, err)
	assert.Nil(t, data)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1/video", "m-1/poster"}, keys)

	require.NoError(t, s.Blobs().Delete("m-1/video"))
	data, err = s.Blobs().Get("m-1/video")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.Blobs().Clear())
	keys, err = s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestQuotaAccounting(t *testing.T) {
	s := openTest(t, Options{QuotaBytes: 100})

	require.NoError(t, s.Blobs().Put("a", make([]byte, 60)))

	err := s.Blobs().Put("b", make([]byte, 60))
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	// Overwriting reclaims the old value's budget first
	require.NoError(t, s.Blobs().Put("a", make([]byte, 90)))

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(90), usage)

	require.NoError(t, s.Blobs().Delete("a"))
	usage, err = s.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := openTest(t, Options{})

	boom := assert.AnError
	err := s.Update(func(tx domain.CatalogTx) error {
		require.NoError(t, tx.Blobs().Put("m-1/video", []byte("bytes")))
		require.NoError(t, tx.Metadata().Put(&domain.Movie{ID: "m-1", Title: "Doomed", Kind: domain.KindMovie}))
		return boom
	})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrStorage)

	// Nothing from the aborted transaction is visible
	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	keys, err := s.Blobs().Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestQuotaAbortsWholeTransaction(t *testing.T) {
	s := openTest(t, Options{QuotaBytes: 50})

	err := s.Update(func(tx domain.CatalogTx) error {
		if err := tx.Metadata().Put(&domain.Movie{ID: "m-1", Title: "Big", Kind: domain.KindMovie}); err != nil {
			return err
		}
		return tx.Blobs().Put("m-1/video", make([]byte, 500))
	})
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	assert.Empty(t, records, "no partial metadata row after quota failure")
}

func TestMigrationFromLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	// Seed a v1 single-store layout: one combined record, blobs inline.
	legacy := legacyMovie{
		ID:          "m-1",
		Title:       "Old Timer",
		Type:        "movie",
		Genre:       "Drama",
		PosterData:  []byte("poster bytes"),
		VideoData:   []byte("video bytes"),
		BackdropURL: "https://cdn.example/backdrop.jpg",
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketLegacy)
		if err != nil {
			return err
		}
		data, err := json.Marshal(&legacy)
		if err != nil {
			return err
		}
		return b.Put([]byte(legacy.ID), data)
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Metadata().GetAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "Old Timer", rec.Title)
	assert.False(t, rec.HasEmbeddedAssets())
	assert.Nil(t, rec.Poster, "embedded asset is stripped, not placeholdered")
	require.NotNil(t, rec.Backdrop)
	assert.Equal(t, "https://cdn.example/backdrop.jpg", rec.Backdrop.URL)

	video, err := s.Blobs().Get("m-1/video")
	require.NoError(t, err)
	assert.Equal(t, []byte("video bytes"), video)
	poster, err := s.Blobs().Get("m-1/poster")
	require.NoError(t, err)
	assert.Equal(t, []byte("poster bytes"), poster)

	usage, err := s.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(len("video bytes")+len("poster bytes")), usage)

	// Reopening an already-migrated store is a no-op
	require.NoError(t, s.Close())
	s2, err := Open(path, Options{})
	require.NoError(t, err)
	defer s2.Close()
	records, err = s2.Metadata().GetAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
