// Package catalog implements the persistence engine behind the movie
// catalog: it splits composite entries into metadata records and blobs
// on write, re-joins them on demand for playback, and keeps an
// in-memory metadata-only cache for browsing so list views never hold
// video payloads.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/zinkereru/megakino/internal/domain"
)

// Engine orchestrates the metadata and blob stores. It is the only
// writer allowed to touch either store; all mutations are serialized
// through one mutex, so concurrent saves for the same ID resolve to
// last-writer-wins in both the stores and the cache.
type Engine struct {
	store  domain.CatalogStore
	logger *slog.Logger

	mu    sync.Mutex
	cache []*domain.Movie // metadata-only, newest first
}

// NewEngine creates an engine over an opened catalog store.
func NewEngine(store domain.CatalogStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// Initialize warms the metadata cache from the store. Idempotent; the
// store itself was opened (and migrated) by the caller.
func (e *Engine) Initialize() error {
	_, err := e.ListMetadata()
	return err
}

// ListMetadata reads all metadata records newest-first and rebuilds the
// cache. Never touches the blob store, so browsing cost is bounded by
// metadata size regardless of stored video volume.
func (e *Engine) ListMetadata() ([]*domain.Movie, error) {
	records, err := e.store.Metadata().GetAll()
	if err != nil {
		e.logger.Error("failed to list metadata", "error", err)
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Seq > records[j].Seq
	})

	e.mu.Lock()
	e.cache = records
	out := make([]*domain.Movie, len(records))
	copy(out, records)
	e.mu.Unlock()

	return out, nil
}

// Save persists a composite entry: embedded assets are extracted into
// the blob store and the stripped record goes to the metadata store,
// all inside one transaction. The cache is updated only after commit —
// replace in place when the ID exists, prepend otherwise.
//
// A replacing save is a full replace, not a patch: blob keys the old
// version owned but the new version no longer writes are deleted in the
// same transaction, so a dropped asset cannot resurface on hydration.
//
// Failures are typed: errors.Is(err, domain.ErrQuotaExceeded) means the
// payload did not fit the storage budget and nothing was written.
func (e *Engine) Save(entry *domain.Movie) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry without id", domain.ErrStorage)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, blobs := split(entry)

	// A replacing write keeps the original sequence so the entry holds
	// its cache position across reloads.
	existing := e.lookupLocked(rec.ID)
	if existing != nil {
		rec.Seq = existing.Seq
	} else {
		rec.Seq = 0 // store allocates
	}

	err := e.store.Update(func(tx domain.CatalogTx) error {
		if existing != nil {
			for _, key := range blobKeys(existing) {
				if _, kept := blobs[key]; kept {
					continue
				}
				if err := tx.Blobs().Delete(key); err != nil {
					return err
				}
			}
		}
		for key, data := range blobs {
			if err := tx.Blobs().Put(key, data); err != nil {
				return err
			}
		}
		return tx.Metadata().Put(rec)
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			e.logger.Warn("save rejected: quota exceeded", "id", rec.ID)
		} else {
			e.logger.Error("save failed", "id", rec.ID, "error", err)
		}
		return err
	}

	if i := e.indexLocked(rec.ID); i >= 0 {
		e.cache[i] = rec
	} else {
		e.cache = append([]*domain.Movie{rec}, e.cache...)
	}

	e.logger.Info("saved entry", "id", rec.ID, "kind", rec.Kind, "blobs", len(blobs))
	return nil
}

// Hydrate re-joins a cached metadata record with its blobs and returns
// the full composite entry for playback. A missing blob leaves the
// corresponding asset unset; only a missing metadata record is an
// error. The cache itself stays metadata-only.
func (e *Engine) Hydrate(id string) (*domain.Movie, error) {
	e.mu.Lock()
	rec := e.lookupLocked(id)
	e.mu.Unlock()
	if rec == nil {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}

	full := rec.Clone()
	err := e.store.View(func(tx domain.CatalogTx) error {
		attach := func(owner, role string, asset **domain.Asset) error {
			if *asset != nil {
				return nil // remote asset, nothing to fetch
			}
			data, err := tx.Blobs().Get(domain.BlobKey(owner, role))
			if err != nil {
				return err
			}
			if data != nil {
				*asset = domain.Embedded(data)
			}
			return nil
		}

		if err := attach(full.ID, domain.BlobRolePoster, &full.Poster); err != nil {
			return err
		}
		if err := attach(full.ID, domain.BlobRoleBackdrop, &full.Backdrop); err != nil {
			return err
		}
		if full.Kind != domain.KindSeries {
			return attach(full.ID, domain.BlobRoleVideo, &full.Video)
		}
		for i := range full.Seasons {
			for j := range full.Seasons[i].Episodes {
				ep := &full.Seasons[i].Episodes[j]
				if err := attach(ep.ID, domain.BlobRoleVideo, &ep.Video); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("hydration failed", "id", id, "error", err)
		return nil, err
	}
	return full, nil
}

// Remove deletes an entry's metadata record and all of its blobs in one
// transaction, then drops it from the cache. Series deletes cascade to
// every episode blob. Removing an unknown ID is a no-op.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.lookupLocked(id)
	if rec == nil {
		return nil
	}

	err := e.store.Update(func(tx domain.CatalogTx) error {
		for _, key := range blobKeys(rec) {
			if err := tx.Blobs().Delete(key); err != nil {
				return err
			}
		}
		return tx.Metadata().Delete(id)
	})
	if err != nil {
		e.logger.Error("remove failed", "id", id, "error", err)
		return err
	}

	if i := e.indexLocked(id); i >= 0 {
		e.cache = append(e.cache[:i], e.cache[i+1:]...)
	}

	e.logger.Info("removed entry", "id", id)
	return nil
}

// WipeAll clears both stores in one transaction and empties the cache.
// Destructive and irreversible; confirmation is the caller's problem.
func (e *Engine) WipeAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.Update(func(tx domain.CatalogTx) error {
		if err := tx.Blobs().Clear(); err != nil {
			return err
		}
		return tx.Metadata().Clear()
	})
	if err != nil {
		e.logger.Error("wipe failed", "error", err)
		return err
	}

	e.cache = nil
	e.logger.Info("wiped catalog")
	return nil
}

// Sweep deletes orphaned blobs: entries in the blob store no live
// metadata record can reach. Orphans accumulate only from layouts
// predating the delete cascade, but the operation is cheap enough to
// run on demand. Returns the number of blobs removed.
func (e *Engine) Sweep() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	err := e.store.Update(func(tx domain.CatalogTx) error {
		records, err := tx.Metadata().GetAll()
		if err != nil {
			return err
		}
		live := make(map[string]bool)
		for _, rec := range records {
			for _, key := range blobKeys(rec) {
				live[key] = true
			}
		}

		keys, err := tx.Blobs().Keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if live[key] {
				continue
			}
			if err := tx.Blobs().Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		e.logger.Error("sweep failed", "error", err)
		return 0, err
	}
	if removed > 0 {
		e.logger.Info("swept orphaned blobs", "count", removed)
	}
	return removed, nil
}

// Cached returns the current cache contents without touching the store.
func (e *Engine) Cached() []*domain.Movie {
	return e.snapshot()
}

func (e *Engine) snapshot() []*domain.Movie {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Movie, len(e.cache))
	copy(out, e.cache)
	return out
}

// lookupLocked and indexLocked require e.mu held.

func (e *Engine) lookupLocked(id string) *domain.Movie {
	if i := e.indexLocked(id); i >= 0 {
		return e.cache[i]
	}
	return nil
}

func (e *Engine) indexLocked(id string) int {
	for i, rec := range e.cache {
		if rec.ID == id {
			return i
		}
	}
	return -1
}
