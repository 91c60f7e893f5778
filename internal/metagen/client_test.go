package metagen

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zinkereru/megakino/internal/log"
)

func TestGenerateParsesCandidateText(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMIMEType)

		resp := generateResponse{}
		resp.Candidates = append(resp.Candidates, struct {
			Content content `json:"content"`
		}{Content: content{Parts: []part{{
			Text: `{"description":"A heist goes sideways.","genre":"Thriller","rating":7.4,"year":2011}`,
		}}}})
		json.NewEncoder(w).Encode(&resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", "secret", log.NullLogger())
	meta, err := client.Generate(t.Context(), "Midnight Run")
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Thriller", meta.Genre)
	assert.Equal(t, 2011, meta.Year)
	assert.InDelta(t, 7.4, meta.Rating, 0.001)
	assert.Equal(t, "A heist goes sideways.", meta.Description)
}

func TestGenerateRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", log.NullLogger())
	_, err := client.Generate(t.Context(), "Anything")
	require.Error(t, err)
	assert.ErrorContains(t, err, "429")
}

func TestGenerateRejectsEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", log.NullLogger())
	_, err := client.Generate(t.Context(), "Anything")
	require.Error(t, err)
	assert.ErrorContains(t, err, "empty response")
}
