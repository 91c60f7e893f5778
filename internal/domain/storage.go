package domain

// Blob roles. One owner ID maps to up to three blobs, so keys carry a
// role suffix instead of a secondary index.
const (
	BlobRoleVideo    = "video"
	BlobRolePoster   = "poster"
	BlobRoleBackdrop = "backdrop"
)

// BlobKey builds the blob-store key for an owner's asset role. Episode
// videos key under the episode's own ID, not the parent movie's.
func BlobKey(ownerID, role string) string {
	return ownerID + "/" + role
}

// MetadataStore is a key→record mapping keyed by movie ID. Records are
// always binary-free; ordering is a cache-layer responsibility, not the
// store's.
type MetadataStore interface {
	// Put upserts by record ID, overwriting any existing record.
	Put(rec *Movie) error

	// GetAll returns every record in unspecified order.
	GetAll() ([]*Movie, error)

	// Delete removes a record by ID. Deleting an absent ID is a no-op.
	Delete(id string) error

	// Clear removes all records.
	Clear() error
}

// BlobStore is a key→bytes mapping with no schema beyond the key.
// One interface serves posters, backdrops, feature video and episode
// video, keyed by the owning entity's ID plus a role suffix.
type BlobStore interface {
	// Put stores bytes under key, overwriting any existing value.
	// Large writes are the primary quota pressure source; a write that
	// would exceed the configured budget fails with ErrQuotaExceeded.
	Put(key string, data []byte) error

	// Get returns the stored bytes, or nil with no error when absent.
	Get(key string) ([]byte, error)

	// Delete removes a blob by key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Keys returns every stored key, for maintenance scans.
	Keys() ([]string, error)

	// Clear removes all blobs.
	Clear() error
}

// CatalogTx exposes both stores inside one atomic transaction. All
// writes made through a CatalogTx become visible together or not at all.
type CatalogTx interface {
	Metadata() MetadataStore
	Blobs() BlobStore
}

// CatalogStore groups the metadata and blob stores behind a shared
// transactional boundary. The persistence engine is its only writer.
type CatalogStore interface {
	// Metadata and Blobs give auto-committed single-operation access.
	Metadata() MetadataStore
	Blobs() BlobStore

	// Update runs fn inside one read-write transaction spanning both
	// stores. If fn returns an error the transaction rolls back and no
	// partial state is observable.
	Update(fn func(tx CatalogTx) error) error

	// View runs fn inside one read-only transaction.
	View(fn func(tx CatalogTx) error) error

	Close() error
}
