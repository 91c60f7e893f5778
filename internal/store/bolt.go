// Package store implements the metadata and blob stores on a single
// BoltDB file. Both live in the same database so one bolt transaction
// can span them, which is what makes the engine's save/remove/wipe
// operations atomic across the two stores.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/zinkereru/megakino/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketMetadata = []byte("metadata")
	bucketBlobs    = []byte("blobs")
	bucketMeta     = []byte("meta")
)

// Keys in the meta bucket
var (
	keySchemaVersion = []byte("schema_version")
	keyBlobBytes     = []byte("blob_bytes")
)

// Options configures a Bolt store.
type Options struct {
	// QuotaBytes caps the total blob payload held by the store. Zero
	// means unlimited. Metadata records are small and not counted.
	QuotaBytes int64
}

// Bolt implements domain.CatalogStore using BoltDB.
type Bolt struct {
	db    *bolt.DB
	quota int64
}

// Open opens (or creates) the store at path and runs any pending schema
// migration. Safe to call on an already-migrated database.
func Open(path string, opts Options) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMetadata, bucketBlobs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return migrate(tx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare store: %w", err)
	}

	return &Bolt{db: db, quota: opts.QuotaBytes}, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

// Usage returns the total blob payload bytes currently stored.
func (s *Bolt) Usage() (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = readUsage(tx)
		return nil
	})
	return n, err
}

// Update runs fn inside one read-write transaction spanning both
// stores. Errors out of fn abort the transaction; generic failures are
// wrapped as domain.ErrStorage so callers can classify with errors.Is.
func (s *Bolt) Update(fn func(tx domain.CatalogTx) error) error {
	err := s.db.Update(func(btx *bolt.Tx) error {
		return fn(&catalogTx{tx: btx, quota: s.quota})
	})
	return classify(err)
}

// View runs fn inside one read-only transaction.
func (s *Bolt) View(fn func(tx domain.CatalogTx) error) error {
	err := s.db.View(func(btx *bolt.Tx) error {
		return fn(&catalogTx{tx: btx, quota: s.quota})
	})
	return classify(err)
}

// Metadata gives auto-committed access to the metadata store: each
// operation runs in its own transaction.
func (s *Bolt) Metadata() domain.MetadataStore { return &autoMetadata{s: s} }

// Blobs gives auto-committed access to the blob store.
func (s *Bolt) Blobs() domain.BlobStore { return &autoBlobs{s: s} }

// classify maps untyped store failures onto the domain error taxonomy.
// Already-typed errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}

// === Transaction view ===

type catalogTx struct {
	tx    *bolt.Tx
	quota int64
}

func (t *catalogTx) Metadata() domain.MetadataStore { return &txMetadata{tx: t.tx} }
func (t *catalogTx) Blobs() domain.BlobStore        { return &txBlobs{tx: t.tx, quota: t.quota} }

// readUsage returns the tracked blob byte total for the transaction.
func readUsage(tx *bolt.Tx) int64 {
	meta := tx.Bucket(bucketMeta)
	if meta == nil {
		return 0
	}
	v := meta.Get(keyBlobBytes)
	if v == nil {
		return 0
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func writeUsage(tx *bolt.Tx, n int64) error {
	if n < 0 {
		n = 0
	}
	return tx.Bucket(bucketMeta).Put(keyBlobBytes, []byte(strconv.FormatInt(n, 10)))
}

// === Metadata store (transactional) ===

type txMetadata struct {
	tx *bolt.Tx
}

func (m *txMetadata) Put(rec *domain.Movie) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: metadata record without id", domain.ErrStorage)
	}
	// The metadata store never holds binary payloads. Splitting is the
	// engine's job; this is the last line of defense.
	if rec.HasEmbeddedAssets() {
		return fmt.Errorf("%w: record %s carries embedded bytes", domain.ErrStorage, rec.ID)
	}

	b := m.tx.Bucket(bucketMetadata)

	// Seq 0 means "assign": reuse the existing record's sequence on
	// replace so the entry keeps its list position, otherwise allocate.
	if rec.Seq == 0 {
		if v := b.Get([]byte(rec.ID)); v != nil {
			var old domain.Movie
			if err := json.Unmarshal(v, &old); err == nil {
				rec.Seq = old.Seq
			}
		}
		if rec.Seq == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			rec.Seq = seq
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put([]byte(rec.ID), data)
}

func (m *txMetadata) GetAll() ([]*domain.Movie, error) {
	var records []*domain.Movie
	b := m.tx.Bucket(bucketMetadata)
	err := b.ForEach(func(k, v []byte) error {
		var rec domain.Movie
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("record %s: %w", k, err)
		}
		records = append(records, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (m *txMetadata) Delete(id string) error {
	return m.tx.Bucket(bucketMetadata).Delete([]byte(id))
}

func (m *txMetadata) Clear() error {
	return clearBucket(m.tx.Bucket(bucketMetadata))
}

// === Blob store (transactional) ===

type txBlobs struct {
	tx    *bolt.Tx
	quota int64
}

func (bs *txBlobs) Put(key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: blob without key", domain.ErrStorage)
	}
	b := bs.tx.Bucket(bucketBlobs)

	// Overwrites reclaim the old value's budget before charging the new.
	delta := int64(len(data)) - int64(len(b.Get([]byte(key))))
	usage := readUsage(bs.tx)
	if bs.quota > 0 && usage+delta > bs.quota {
		return fmt.Errorf("blob %s (%d bytes): %w", key, len(data), domain.ErrQuotaExceeded)
	}

	if err := b.Put([]byte(key), data); err != nil {
		return err
	}
	return writeUsage(bs.tx, usage+delta)
}

func (bs *txBlobs) Get(key string) ([]byte, error) {
	v := bs.tx.Bucket(bucketBlobs).Get([]byte(key))
	if v == nil {
		return nil, nil
	}
	// Bolt values are only valid for the life of the transaction.
	data := make([]byte, len(v))
	copy(data, v)
	return data, nil
}

func (bs *txBlobs) Delete(key string) error {
	b := bs.tx.Bucket(bucketBlobs)
	existing := b.Get([]byte(key))
	if existing == nil {
		return nil
	}
	if err := b.Delete([]byte(key)); err != nil {
		return err
	}
	return writeUsage(bs.tx, readUsage(bs.tx)-int64(len(existing)))
}

func (bs *txBlobs) Keys() ([]string, error) {
	var keys []string
	c := bs.tx.Bucket(bucketBlobs).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	return keys, nil
}

func (bs *txBlobs) Clear() error {
	if err := clearBucket(bs.tx.Bucket(bucketBlobs)); err != nil {
		return err
	}
	return writeUsage(bs.tx, 0)
}

func clearBucket(b *bolt.Bucket) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// === Auto-committed adapters ===

type autoMetadata struct {
	s *Bolt
}

func (a *autoMetadata) Put(rec *domain.Movie) error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Metadata().Put(rec) })
}

func (a *autoMetadata) GetAll() (records []*domain.Movie, err error) {
	err = a.s.View(func(tx domain.CatalogTx) error {
		records, err = tx.Metadata().GetAll()
		return err
	})
	return records, err
}

func (a *autoMetadata) Delete(id string) error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Metadata().Delete(id) })
}

func (a *autoMetadata) Clear() error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Metadata().Clear() })
}

type autoBlobs struct {
	s *Bolt
}

func (a *autoBlobs) Put(key string, data []byte) error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Blobs().Put(key, data) })
}

func (a *autoBlobs) Get(key string) (data []byte, err error) {
	err = a.s.View(func(tx domain.CatalogTx) error {
		data, err = tx.Blobs().Get(key)
		return err
	})
	return data, err
}

func (a *autoBlobs) Delete(key string) error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Blobs().Delete(key) })
}

func (a *autoBlobs) Keys() (keys []string, err error) {
	err = a.s.View(func(tx domain.CatalogTx) error {
		keys, err = tx.Blobs().Keys()
		return err
	})
	return keys, err
}

func (a *autoBlobs) Clear() error {
	return a.s.Update(func(tx domain.CatalogTx) error { return tx.Blobs().Clear() })
}
