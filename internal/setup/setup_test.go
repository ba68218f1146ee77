package setup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iishyfishyy/lookalike/internal/config"
)

func ollamaServer(t *testing.T, embedding string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"custom:latest"}]}`))
		case "/api/embed":
			w.Write([]byte(`{"embeddings":[` + embedding + `]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIsOllamaRunning(t *testing.T) {
	srv := ollamaServer(t, "[1]")
	assert.True(t, IsOllamaRunning(srv.URL))
	assert.False(t, IsOllamaRunning("http://127.0.0.1:1"))
}

func TestTestProvider(t *testing.T) {
	srv := ollamaServer(t, "[0.1,0.2,0.3]")

	cfg := config.Default()
	cfg.Ollama.URL = srv.URL
	cfg.Ollama.Model = "custom"
	cfg.Dimensions = 3
	require.NoError(t, TestProvider(context.Background(), cfg))

	cfg.Dimensions = 4
	err := TestProvider(context.Background(), cfg)
	assert.ErrorContains(t, err, "returned 3 dimensions, expected 4")
}

func TestTestS3_NoBuckets(t *testing.T) {
	cfg := config.Default()
	cfg.Collections = []config.CollectionConfig{{Name: "local", Path: "./images"}}
	assert.NoError(t, TestS3(context.Background(), cfg))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "x", orDefault("", "x"))
	assert.Equal(t, "y", orDefault("y", "x"))
}
