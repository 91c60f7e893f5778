// Package api exposes the catalog engine over HTTP as the remote
// persistence variant: five CRUD endpoints plus per-entry hydration.
// Embedded assets travel base64-encoded in JSON; the engine behind the
// handlers still splits them into the blob store on write.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/zinkereru/megakino/internal/domain"
)

// Catalog is the engine surface the API serves.
type Catalog interface {
	ListMetadata() ([]*domain.Movie, error)
	Save(entry *domain.Movie) error
	Hydrate(id string) (*domain.Movie, error)
	Remove(id string) error
	WipeAll() error
}

type server struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewRouter builds the HTTP router over a catalog.
func NewRouter(catalog Catalog, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{catalog: catalog, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Route("/movies", func(r chi.Router) {
		r.Get("/", s.list)
		r.Post("/", s.create)
		r.Delete("/", s.wipe)
		r.Get("/{id}", s.get)
		r.Put("/{id}", s.update)
		r.Delete("/{id}", s.remove)
	})
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	records, err := s.catalog.ListMetadata()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []*domain.Movie{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.Hydrate(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	for i := range entry.Seasons {
		for j := range entry.Seasons[i].Episodes {
			if entry.Seasons[i].Episodes[j].ID == "" {
				entry.Seasons[i].Episodes[j].ID = uuid.NewString()
			}
		}
	}
	if err := s.catalog.Save(entry); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": entry.ID})
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	entry.ID = chi.URLParam(r, "id")
	if err := s.catalog.Save(entry); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": entry.ID})
}

func (s *server) remove(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Remove(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) wipe(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.WipeAll(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decodeEntry(w http.ResponseWriter, r *http.Request) (*domain.Movie, bool) {
	var entry domain.Movie
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		s.logger.Warn("malformed entry payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed entry"})
		return nil, false
	}
	return &entry, true
}

// writeError maps the domain error taxonomy onto status codes: quota
// exhaustion gets its own code so clients can tell the user to shrink
// files rather than retry.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
