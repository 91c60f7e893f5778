package domain

import "fmt"

// Kind distinguishes catalog entry types
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Categories are the genre filters offered by the catalog UI and the
// metadata generator. "All" is a UI pseudo-category, not a stored genre.
var Categories = []string{"All", "Action", "Drama", "Sci-Fi", "Comedy", "Horror", "Thriller"}

// Asset is a media asset in exactly one of two representations:
// embedded raw bytes or a remote URL. Never both.
type Asset struct {
	Bytes []byte `json:"data,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Embedded wraps raw bytes as an embedded asset.
func Embedded(b []byte) *Asset { return &Asset{Bytes: b} }

// Remote wraps a URL as a remote asset.
func Remote(url string) *Asset { return &Asset{URL: url} }

// IsEmbedded reports whether the asset carries inline bytes.
func (a *Asset) IsEmbedded() bool { return a != nil && len(a.Bytes) > 0 }

// IsRemote reports whether the asset is an external URL reference.
func (a *Asset) IsRemote() bool { return a != nil && a.URL != "" }

// Movie represents one catalog entry: a standalone feature (KindMovie,
// with its own video asset) or a series (KindSeries, with seasons).
//
// Persisted metadata records are binary-free: every embedded asset is
// stripped before the record reaches the metadata store, and its bytes
// live in the blob store under a role-suffixed key. Remote (URL) assets
// stay on the record.
type Movie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Year        int     `json:"year,omitempty"`
	IsPremium   bool    `json:"isPremium,omitempty"`
	Kind        Kind    `json:"kind"`

	Poster   *Asset `json:"poster,omitempty"`
	Backdrop *Asset `json:"backdrop,omitempty"`

	// Video is set only for KindMovie.
	Video *Asset `json:"video,omitempty"`

	// Seasons is set only for KindSeries.
	Seasons []Season `json:"seasons,omitempty"`

	// Seq is the insertion sequence assigned by the store on first write.
	// List ordering is newest-first, i.e. descending Seq. A replacing
	// write keeps the original Seq so the entry holds its position.
	Seq uint64 `json:"seq,omitempty"`
}

// Season groups episodes. Number is 1-based and ordering-significant.
type Season struct {
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes"`
}

// Episode is a playable unit inside a season. Its ID is unique across
// the whole catalog and doubles as its blob-store key prefix.
type Episode struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Video  *Asset `json:"video,omitempty"`
}

// HasEmbeddedAssets reports whether any asset anywhere in the entry
// carries inline bytes. A metadata record must always return false.
func (m *Movie) HasEmbeddedAssets() bool {
	if m.Poster.IsEmbedded() || m.Backdrop.IsEmbedded() || m.Video.IsEmbedded() {
		return true
	}
	for _, s := range m.Seasons {
		for _, e := range s.Episodes {
			if e.Video.IsEmbedded() {
				return true
			}
		}
	}
	return false
}

// EpisodeCount returns the total number of episodes across all seasons.
func (m *Movie) EpisodeCount() int {
	n := 0
	for _, s := range m.Seasons {
		n += len(s.Episodes)
	}
	return n
}

// Clone returns a deep copy of the entry structure. Asset byte slices
// are shared, not copied; assets are treated as immutable once attached.
func (m *Movie) Clone() *Movie {
	c := *m
	if m.Poster != nil {
		p := *m.Poster
		c.Poster = &p
	}
	if m.Backdrop != nil {
		b := *m.Backdrop
		c.Backdrop = &b
	}
	if m.Video != nil {
		v := *m.Video
		c.Video = &v
	}
	if m.Seasons != nil {
		c.Seasons = make([]Season, len(m.Seasons))
		for i, s := range m.Seasons {
			cs := s
			cs.Episodes = make([]Episode, len(s.Episodes))
			for j, e := range s.Episodes {
				ce := e
				if e.Video != nil {
					v := *e.Video
					ce.Video = &v
				}
				cs.Episodes[j] = ce
			}
			c.Seasons[i] = cs
		}
	}
	return &c
}

// Describe returns secondary display info: year for movies, season
// count for series.
func (m *Movie) Describe() string {
	if m.Kind == KindSeries {
		if len(m.Seasons) == 1 {
			return "1 Season"
		}
		return fmt.Sprintf("%d Seasons", len(m.Seasons))
	}
	if m.Year > 0 {
		return fmt.Sprintf("%d", m.Year)
	}
	return ""
}
