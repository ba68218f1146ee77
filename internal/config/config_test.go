package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	exists, err := Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveAndLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvOpenAIKey, "")

	cfg := Default()
	cfg.Provider = ProviderOpenAI
	cfg.OpenAI.APIKey = "sk-file"
	cfg.Hashing.Bits = 128
	cfg.Collections = []CollectionConfig{
		{Name: "photos", Path: "~/photos"},
		{Name: "remote", Path: "s3://bucket/images"},
	}
	cfg.S3.Endpoint = "localhost:9000"
	cfg.S3.Insecure = true
	require.NoError(t, Save(cfg))

	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lookalike", "config.yaml"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, ProviderOpenAI, loaded.Provider)
	assert.Equal(t, "sk-file", loaded.OpenAI.APIKey)
	assert.Equal(t, 128, loaded.Hashing.Bits)
	assert.Equal(t, uint64(1), loaded.Hashing.Seed)
	assert.Equal(t, 10, loaded.Explorer.TopK)

	remote, ok := loaded.Collection("remote")
	require.True(t, ok)
	assert.True(t, remote.IsS3())
	assert.False(t, loaded.S3Options().Secure)

	emb := loaded.Embedding()
	assert.Equal(t, "openai", emb.Provider)
	assert.Equal(t, "sk-file", emb.OpenAIKey)

	cache, err := loaded.CacheFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lookalike", "fingerprints.db"), cache)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: openai
openai:
  api_key: sk-file
s3:
  endpoint: minio:9000
  access_key: file-access
collections:
  - name: docs
    path: ./docs
`), 0600))

	t.Setenv(EnvOpenAIKey, "sk-env")
	t.Setenv(EnvS3AccessKey, "env-access")
	t.Setenv(EnvS3SecretKey, "env-secret")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "env-access", cfg.S3.AccessKey)
	assert.Equal(t, "env-secret", cfg.S3.SecretKey)
	assert.True(t, cfg.S3Options().Secure)
}

func TestSaveFile_OmitsEnvKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.OpenAI.UseEnv = true
	cfg.OpenAI.APIKey = "sk-from-env"
	require.NoError(t, SaveFile(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-from-env")
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey, "caller's config is unchanged")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "bert" }, "unknown provider"},
		{"negative bits", func(c *Config) { c.Hashing.Bits = -1 }, "hashing.bits"},
		{"negative top_k", func(c *Config) { c.Explorer.TopK = -3 }, "top_k"},
		{"zero top_k", func(c *Config) { c.Explorer.TopK = 0 }, "top_k must be positive"},
		{"duplicate collection", func(c *Config) {
			c.Collections = []CollectionConfig{{Name: "a", Path: "x"}, {Name: "a", Path: "y"}}
		}, "duplicate"},
		{"s3 without endpoint", func(c *Config) {
			c.Collections = []CollectionConfig{{Name: "a", Path: "s3://b/p"}}
		}, "s3.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [nope"), 0600))
	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "failed to parse")

	require.NoError(t, os.WriteFile(path, []byte("provider: bert\n"), 0600))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestCacheFile_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.CachePath = "~/cache/fp.db"
	path, err := cfg.CacheFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache", "fp.db"), path)
}
