package catalog

import "github.com/zinkereru/megakino/internal/domain"

// split walks a composite entry and separates it into a binary-free
// metadata record and the extracted blobs, keyed by owner ID and role.
// The input entry is not mutated.
func split(entry *domain.Movie) (*domain.Movie, map[string][]byte) {
	rec := entry.Clone()
	blobs := make(map[string][]byte)

	extract := func(owner, role string, asset **domain.Asset) {
		if (*asset).IsEmbedded() {
			blobs[domain.BlobKey(owner, role)] = (*asset).Bytes
			*asset = nil
		}
	}

	extract(rec.ID, domain.BlobRolePoster, &rec.Poster)
	extract(rec.ID, domain.BlobRoleBackdrop, &rec.Backdrop)
	extract(rec.ID, domain.BlobRoleVideo, &rec.Video)

	for i := range rec.Seasons {
		for j := range rec.Seasons[i].Episodes {
			ep := &rec.Seasons[i].Episodes[j]
			extract(ep.ID, domain.BlobRoleVideo, &ep.Video)
		}
	}

	return rec, blobs
}

// blobKeys returns every blob key a metadata record may own, including
// keys that were never written. Used for deletes and orphan sweeps.
func blobKeys(rec *domain.Movie) []string {
	keys := []string{
		domain.BlobKey(rec.ID, domain.BlobRolePoster),
		domain.BlobKey(rec.ID, domain.BlobRoleBackdrop),
		domain.BlobKey(rec.ID, domain.BlobRoleVideo),
	}
	for _, s := range rec.Seasons {
		for _, e := range s.Episodes {
			keys = append(keys, domain.BlobKey(e.ID, domain.BlobRoleVideo))
		}
	}
	return keys
}
