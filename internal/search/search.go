// Package search filters the metadata cache for the browse surface:
// fuzzy title matching plus genre and kind facets. It only ever sees
// metadata records, never blobs.
package search

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"
	"github.com/zinkereru/megakino/internal/domain"
)

// Result is a matched record with scoring metadata for highlighting.
type Result struct {
	Movie          *domain.Movie
	Score          int
	MatchedIndexes []int
}

// Query describes one filter pass over the cache.
type Query struct {
	Term  string      // fuzzy title term, empty matches everything
	Genre string      // exact genre, "" or "All" matches everything
	Kind  domain.Kind // "" matches both movies and series
}

// Filter applies facets first, then ranks the remainder by fuzzy title
// match. With an empty term the facet-filtered records are returned in
// their cache order (newest first).
func Filter(records []*domain.Movie, q Query) []Result {
	var candidates []*domain.Movie
	for _, rec := range records {
		if q.Kind != "" && rec.Kind != q.Kind {
			continue
		}
		if q.Genre != "" && q.Genre != "All" && !strings.EqualFold(rec.Genre, q.Genre) {
			continue
		}
		candidates = append(candidates, rec)
	}

	term := strings.TrimSpace(q.Term)
	if term == "" {
		results := make([]Result, len(candidates))
		for i, rec := range candidates {
			results[i] = Result{Movie: rec}
		}
		return results
	}

	titles := make([]string, len(candidates))
	for i, rec := range candidates {
		titles[i] = rec.Title
	}

	matches := sahilm.Find(term, titles)
	if len(matches) > 0 {
		results := make([]Result, len(matches))
		for i, m := range matches {
			results[i] = Result{
				Movie:          candidates[m.Index],
				Score:          m.Score,
				MatchedIndexes: m.MatchedIndexes,
			}
		}
		return results
	}

	// Fall back to normalized matching so accented titles still hit
	// ("Amelie" finds "Amélie").
	var results []Result
	for i, title := range titles {
		if fuzzy.MatchNormalizedFold(term, title) {
			results = append(results, Result{
				Movie: candidates[i],
				Score: fuzzy.RankMatchNormalizedFold(term, title),
			})
		}
	}
	return results
}
