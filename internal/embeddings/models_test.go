package embeddings

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, requests *[]ollamaEmbedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"all-minilm:latest"},{"name":"nomic-embed-text:v1.5"}]}`))
		case "/api/embed":
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "all-minilm", req.Model)
			assert.True(t, req.Truncate)
			if requests != nil {
				*requests = append(*requests, req)
			}
			if slices.Contains(req.Input, "fail") {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"model runner crashed"}`))
				return
			}
			if slices.Contains(req.Input, "short") {
				w.Write([]byte(`{"embeddings":[]}`))
				return
			}
			var resp ollamaEmbedResponse
			for i := range req.Input {
				resp.Embeddings = append(resp.Embeddings, []float32{float32(i), -0.5, 1})
			}
			json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaModel(t *testing.T) {
	var requests []ollamaEmbedRequest
	srv := ollamaServer(t, &requests)

	m, err := NewOllamaModel(srv.URL, "all-minilm", 0)
	require.NoError(t, err)
	assert.Equal(t, 384, m.Dimensions())
	assert.Equal(t, "ollama/all-minilm", m.Name())

	vecs, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, -0.5, 1}, {1, -0.5, 1}}, vecs)
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"a", "b"}, requests[0].Input)

	vec, err := m.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, -0.5, 1}, vec)

	_, err = m.Embed(context.Background(), "fail")
	assert.ErrorContains(t, err, "status 500: model runner crashed")

	_, err = m.Embed(context.Background(), "short")
	assert.ErrorContains(t, err, "0 embeddings for 1 inputs")
}

func TestOllamaModel_Chunks(t *testing.T) {
	var requests []ollamaEmbedRequest
	srv := ollamaServer(t, &requests)

	m, err := NewOllamaModel(srv.URL, "all-minilm", 0)
	require.NoError(t, err)

	texts := make([]string, ollamaMaxBatch+5)
	for i := range texts {
		texts[i] = "t"
	}
	vecs, err := m.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Input, ollamaMaxBatch)
	assert.Len(t, requests[1].Input, 5)
	assert.Equal(t, float32(4), vecs[ollamaMaxBatch+4][0])
}

func TestOllamaModel_NotPulled(t *testing.T) {
	srv := ollamaServer(t, nil)
	_, err := NewOllamaModel(srv.URL, "mxbai-embed-large", 0)
	assert.ErrorContains(t, err, "ollama pull mxbai-embed-large")

	// explicit tags must match exactly
	_, err = NewOllamaModel(srv.URL, "nomic-embed-text:v1.5", 768)
	assert.NoError(t, err)
}

func TestHasOllamaModel(t *testing.T) {
	pulled := []string{"all-minilm:latest", "nomic-embed-text:v1.5"}
	assert.True(t, hasOllamaModel(pulled, "all-minilm"))
	assert.True(t, hasOllamaModel(pulled, "all-minilm:latest"))
	assert.True(t, hasOllamaModel(pulled, "nomic-embed-text:v1.5"))
	assert.False(t, hasOllamaModel(pulled, "nomic-embed-text"))
	assert.False(t, hasOllamaModel(nil, "all-minilm"))
}

func TestOllamaModel_UnknownDimensions(t *testing.T) {
	_, err := NewOllamaModel("http://127.0.0.1:1", "mystery-model", 0)
	assert.ErrorContains(t, err, "unknown dimensions")
}

func TestOpenAIModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// Reply out of order to check index-based placement.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("sk-test", "", srv.URL, 2)
	require.NoError(t, err)
	assert.Equal(t, "openai/text-embedding-3-small", m.Name())
	assert.Equal(t, 2, m.Dimensions())

	vecs, err := m.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIModel_RequiresKey(t *testing.T) {
	_, err := NewOpenAIModel("", "", "", 0)
	assert.Error(t, err)
}

func TestCLIPModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clipRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/embed/text":
			out := make([][]float32, len(req.Texts))
			for i := range out {
				out[i] = []float32{float32(i + 1), 0}
			}
			json.NewEncoder(w).Encode(clipResponse{Embeddings: out})
		case "/embed/image":
			require.Len(t, req.Images, 1)
			data, err := base64.StdEncoding.DecodeString(req.Images[0].Data)
			require.NoError(t, err)
			assert.Equal(t, "pixels", string(data))
			assert.Equal(t, "image/png", req.Images[0].MimeType)
			json.NewEncoder(w).Encode(clipResponse{Embeddings: [][]float32{{0, 1}}})
		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(clipResponse{Error: "bad path"})
		}
	}))
	defer srv.Close()

	m, err := NewCLIPModel(srv.URL+"/", "", 2)
	require.NoError(t, err)
	assert.Equal(t, "clip/ViT-B-32", m.Name())

	vecs, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {2, 0}}, vecs)

	img, err := m.EmbedImage(context.Background(), []byte("pixels"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, img)
}

func TestCLIPModel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer srv.Close()

	m, err := NewCLIPModel(srv.URL, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 512, m.Dimensions())

	_, err = m.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "model loading")
}

func TestNewModel(t *testing.T) {
	text, image, err := NewModel(Config{Provider: "clip", CLIPURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.NotNil(t, text)
	assert.NotNil(t, image)

	_, _, err = NewModel(Config{Provider: "bogus"})
	assert.ErrorContains(t, err, "unknown embedding provider")
}
