package store

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/zinkereru/megakino/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Schema versions. v1 kept full composite records, blobs inline, in a
// single "movies" bucket. v2 splits each record into a binary-free
// metadata record plus role-keyed blob entries.
const schemaVersion = 2

// bucketLegacy is the v1 single-store bucket.
var bucketLegacy = []byte("movies")

// legacyMovie mirrors the v1 record shape: binary payloads inline,
// loose blob-or-URL pairs per asset.
type legacyMovie struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Genre        string         `json:"genre,omitempty"`
	Rating       float64        `json:"rating,omitempty"`
	Year         int            `json:"year,omitempty"`
	IsPremium    bool           `json:"isPremium,omitempty"`
	Type         string         `json:"type"`
	PosterData   []byte         `json:"posterData,omitempty"`
	PosterURL    string         `json:"posterUrl,omitempty"`
	BackdropData []byte         `json:"backdropData,omitempty"`
	BackdropURL  string         `json:"backdropUrl,omitempty"`
	VideoData    []byte         `json:"videoData,omitempty"`
	VideoURL     string         `json:"videoUrl,omitempty"`
	Seasons      []legacySeason `json:"seasons,omitempty"`
}

type legacySeason struct {
	Number   int             `json:"number"`
	Episodes []legacyEpisode `json:"episodes"`
}

type legacyEpisode struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	VideoData []byte `json:"videoData,omitempty"`
	VideoURL  string `json:"videoUrl,omitempty"`
}

// migrate upgrades the store layout to the current schema inside the
// caller's transaction. Idempotent: a store already at the current
// version is left untouched.
func migrate(tx *bolt.Tx) error {
	version := readVersion(tx)
	if version >= schemaVersion {
		return nil
	}

	if legacy := tx.Bucket(bucketLegacy); legacy != nil {
		if err := splitLegacy(tx, legacy); err != nil {
			return fmt.Errorf("v1 migration: %w", err)
		}
		if err := tx.DeleteBucket(bucketLegacy); err != nil {
			return err
		}
	}

	return writeVersion(tx, schemaVersion)
}

// splitLegacy rewrites every combined v1 record as a metadata record
// plus blob entries, keeping the quota accounting consistent. The v1
// layout recorded no insertion order, so migrated records are sequenced
// in bucket (ID-lexicographic) iteration order.
func splitLegacy(tx *bolt.Tx, legacy *bolt.Bucket) error {
	metadata := tx.Bucket(bucketMetadata)
	blobs := tx.Bucket(bucketBlobs)
	usage := readUsage(tx)

	putBlob := func(key string, data []byte) error {
		if err := blobs.Put([]byte(key), data); err != nil {
			return err
		}
		usage += int64(len(data))
		return nil
	}

	err := legacy.ForEach(func(k, v []byte) error {
		var old legacyMovie
		if err := json.Unmarshal(v, &old); err != nil {
			return fmt.Errorf("record %s: %w", k, err)
		}

		seq, err := metadata.NextSequence()
		if err != nil {
			return err
		}

		rec := domain.Movie{
			ID:          old.ID,
			Title:       old.Title,
			Description: old.Description,
			Genre:       old.Genre,
			Rating:      old.Rating,
			Year:        old.Year,
			IsPremium:   old.IsPremium,
			Kind:        domain.Kind(old.Type),
			Seq:         seq,
		}

		switch {
		case len(old.PosterData) > 0:
			if err := putBlob(domain.BlobKey(old.ID, domain.BlobRolePoster), old.PosterData); err != nil {
				return err
			}
		case old.PosterURL != "":
			rec.Poster = domain.Remote(old.PosterURL)
		}

		switch {
		case len(old.BackdropData) > 0:
			if err := putBlob(domain.BlobKey(old.ID, domain.BlobRoleBackdrop), old.BackdropData); err != nil {
				return err
			}
		case old.BackdropURL != "":
			rec.Backdrop = domain.Remote(old.BackdropURL)
		}

		switch {
		case len(old.VideoData) > 0:
			if err := putBlob(domain.BlobKey(old.ID, domain.BlobRoleVideo), old.VideoData); err != nil {
				return err
			}
		case old.VideoURL != "":
			rec.Video = domain.Remote(old.VideoURL)
		}

		for _, s := range old.Seasons {
			season := domain.Season{Number: s.Number}
			for _, e := range s.Episodes {
				ep := domain.Episode{ID: e.ID, Number: e.Number, Title: e.Title}
				switch {
				case len(e.VideoData) > 0:
					if err := putBlob(domain.BlobKey(e.ID, domain.BlobRoleVideo), e.VideoData); err != nil {
						return err
					}
				case e.VideoURL != "":
					ep.Video = domain.Remote(e.VideoURL)
				}
				season.Episodes = append(season.Episodes, ep)
			}
			rec.Seasons = append(rec.Seasons, season)
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return metadata.Put([]byte(rec.ID), data)
	})
	if err != nil {
		return err
	}

	return writeUsage(tx, usage)
}

func readVersion(tx *bolt.Tx) int {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return 0
	}
	v := meta.Get(keySchemaVersion)
	if v == nil {
		return 0
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0
	}
	return n
}

func writeVersion(tx *bolt.Tx, version int) error {
	return tx.Bucket(bucketMeta).Put(keySchemaVersion, []byte(strconv.Itoa(version)))
}
