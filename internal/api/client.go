package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/zinkereru/megakino/internal/domain"
)

// Client is the remote-backed persistence variant: the same catalog
// surface served by the local engine, reached over HTTP. The client
// itself performs no blob splitting — entries travel whole and the
// server's engine is responsible for split semantics.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a remote catalog client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// List fetches all metadata records, newest first.
func (c *Client) List(ctx context.Context) ([]*domain.Movie, error) {
	var records []*domain.Movie
	if err := c.do(ctx, http.MethodGet, "/movies", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches one fully hydrated entry.
func (c *Client) Get(ctx context.Context, id string) (*domain.Movie, error) {
	var entry domain.Movie
	if err := c.do(ctx, http.MethodGet, "/movies/"+id, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create uploads a new composite entry. The server assigns an ID when
// the entry has none; the assigned ID is written back into entry.
func (c *Client) Create(ctx context.Context, entry *domain.Movie) error {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/movies", entry, &created); err != nil {
		return err
	}
	entry.ID = created.ID
	return nil
}

// Update replaces the entry stored under its ID.
func (c *Client) Update(ctx context.Context, entry *domain.Movie) error {
	return c.do(ctx, http.MethodPut, "/movies/"+entry.ID, entry, nil)
}

// Delete removes one entry. Deleting an unknown ID is a no-op.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/movies/"+id, nil, nil)
}

// Wipe clears the whole remote catalog.
func (c *Client) Wipe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/movies", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError maps response codes back onto the domain taxonomy so
// callers classify remote failures exactly like local ones.
func (c *Client) statusError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, payload.Error)
	case http.StatusInsufficientStorage:
		return fmt.Errorf("%w: %s", domain.ErrQuotaExceeded, payload.Error)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStorage, resp.StatusCode, payload.Error)
	}
}
