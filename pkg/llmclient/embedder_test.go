package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedderEmbedPostsModelAndReturnsVector(t *testing.T) {
	var gotPath string
	var gotReq embedWireRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"vector": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "embed-model", time.Second)
	vec, err := e.Embed(context.Background(), "what foods lower potassium")
	require.NoError(t, err)

	assert.Equal(t, "/v1/embeddings", gotPath)
	assert.Equal(t, "embed-model", gotReq.Model)
	assert.Equal(t, "what foods lower potassium", gotReq.Input)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHTTPEmbedderEmbedNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "embed-model", time.Second)
	_, err := e.Embed(context.Background(), "query")
	assert.Error(t, err)
}
