package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, dims int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-embedding", body["model"])

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(i) / 10
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  "test-embedding",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
		})
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 3, &calls)
	defer srv.Close()

	e := NewOpenAIEmbedder(EmbedderConfig{BaseURL: srv.URL, Model: "test-embedding", Dimensions: 3})
	vec, err := e.Embed(context.Background(), "key-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.1, 0.2}, vec)
	assert.Equal(t, 3, e.Dimensions())

	_, err = e.Embed(context.Background(), "key-1", "again")
	require.NoError(t, err)
	assert.Len(t, e.clients, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 2, &calls)
	defer srv.Close()

	e := NewOpenAIEmbedder(EmbedderConfig{BaseURL: srv.URL, Model: "test-embedding", Dimensions: 3})
	_, err := e.Embed(context.Background(), "key-1", "hello")
	assert.Error(t, err)
}

func TestOpenAIEmbedder_RejectsEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(EmbedderConfig{})
	_, err := e.Embed(context.Background(), "", "hello")
	assert.Error(t, err)
	_, err = e.Embed(context.Background(), "key", "  ")
	assert.Error(t, err)
}

func TestOpenAIEmbedder_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(EmbedderConfig{BaseURL: srv.URL, Model: "test-embedding", Dimensions: 3})
	_, err := e.Embed(context.Background(), "key-1", "hello")
	assert.Error(t, err)
}
