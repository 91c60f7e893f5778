// Package metagen calls the generative-language API to draft catalog
// metadata for a title: one request, one schema-constrained JSON
// response, no retries. Callers fall back to manual entry on error.
package metagen

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

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-3-flash-preview"

	requestTimeout = 30 * time.Second
)

// Client is a metadata-generation client.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. Empty baseURL and model fall back to the
// public endpoint and default model.
func NewClient(baseURL, model, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Request/response wire types for the generateContent endpoint.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// responseSchema constrains the model output to the metadata shape.
var responseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"description": {"type": "STRING", "description": "A 2-3 sentence engaging plot summary."},
		"genre": {"type": "STRING", "description": "Primary genre (Action, Drama, Sci-Fi, Comedy, Horror, Thriller)."},
		"rating": {"type": "NUMBER", "description": "A realistic IMDB-style rating between 1.0 and 10.0."},
		"year": {"type": "INTEGER", "description": "Year of release."}
	},
	"required": ["description", "genre", "rating", "year"]
}`)

// Generate requests cinematic metadata for the given title.
func (c *Client) Generate(ctx context.Context, title string) (*domain.GeneratedMetadata, error) {
	prompt := fmt.Sprintf(`Generate high-quality cinematic metadata for a movie titled %q. `+
		`The description should be captivating. The rating should be a realistic decimal. `+
		`The year should be between 1990 and 2025. Return JSON.`, title)

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("metadata generation request failed", "title", title, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("metadata generation rejected", "status", resp.StatusCode)
		return nil, fmt.Errorf("generate: unexpected status %d: %s", resp.StatusCode, body)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("generate: decode response: %w", err)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("generate: empty response")
	}

	text := strings.TrimSpace(gen.Candidates[0].Content.Parts[0].Text)
	var meta domain.GeneratedMetadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return nil, fmt.Errorf("generate: malformed metadata JSON: %w", err)
	}

	c.logger.Info("generated metadata", "title", title, "genre", meta.Genre, "year", meta.Year)
	return &meta, nil
}
