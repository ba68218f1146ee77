package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/embeddings"
)

const (
	ConfigDirName  = ".lookalike"
	ConfigFileName = "config.yaml"
	CacheFileName  = "fingerprints.db"
)

// Environment variables that override file values
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvS3AccessKey = "LOOKALIKE_S3_ACCESS_KEY"
	EnvS3SecretKey = "LOOKALIKE_S3_SECRET_KEY"
)

// Provider names an embedding backend
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderCLIP   Provider = "clip"
)

// Config represents the application configuration
type Config struct {
	Provider    Provider           `yaml:"provider"`
	Dimensions  int                `yaml:"dimensions,omitempty"`
	Ollama      OllamaConfig       `yaml:"ollama,omitempty"`
	OpenAI      OpenAIConfig       `yaml:"openai,omitempty"`
	CLIP        CLIPConfig         `yaml:"clip,omitempty"`
	Hashing     HashingConfig      `yaml:"hashing"`
	Explorer    ExplorerConfig     `yaml:"explorer"`
	Collections []CollectionConfig `yaml:"collections"`
	S3          S3Config           `yaml:"s3,omitempty"`
	CachePath   string             `yaml:"cache_path,omitempty"`
}

type OllamaConfig struct {
	URL   string `yaml:"url,omitempty"`
	Model string `yaml:"model,omitempty"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	UseEnv  bool   `yaml:"use_env_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type CLIPConfig struct {
	URL   string `yaml:"url,omitempty"`
	Model string `yaml:"model,omitempty"`
}

// HashingConfig controls how embeddings become fingerprints. Changing either
// field invalidates the fingerprint cache.
type HashingConfig struct {
	Bits int    `yaml:"bits"`
	Seed uint64 `yaml:"seed"`
}

type ExplorerConfig struct {
	TopK        int     `yaml:"top_k"`
	Concurrency int     `yaml:"concurrency,omitempty"`
	RateLimit   float64 `yaml:"rate_limit,omitempty"` // embedder calls per second, 0 = unlimited
	Burst       int     `yaml:"burst,omitempty"`
}

// CollectionConfig names a collection and where to load it from: a local
// directory or an s3://bucket/prefix URL.
type CollectionConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// IsS3 reports whether the collection lives in an S3-compatible store
func (c CollectionConfig) IsS3() bool {
	return strings.HasPrefix(c.Path, "s3://")
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Insecure  bool   `yaml:"insecure,omitempty"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.Hashing.Bits == 0 {
		c.Hashing.Bits = 64
	}
	if c.Hashing.Seed == 0 {
		c.Hashing.Seed = 1
	}
	if c.Explorer.TopK == 0 {
		c.Explorer.TopK = 10
	}
	if c.Explorer.Concurrency == 0 {
		c.Explorer.Concurrency = 1
	}
}

// applyEnv overrides secrets from the environment
func (c *Config) applyEnv() {
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		c.OpenAI.APIKey = key
	}
	if key := os.Getenv(EnvS3AccessKey); key != "" {
		c.S3.AccessKey = key
	}
	if key := os.Getenv(EnvS3SecretKey); key != "" {
		c.S3.SecretKey = key
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderCLIP:
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}

	if c.Hashing.Bits <= 0 {
		return fmt.Errorf("hashing.bits must be positive, got %d", c.Hashing.Bits)
	}
	if c.Explorer.TopK <= 0 {
		return fmt.Errorf("explorer.top_k must be positive, got %d", c.Explorer.TopK)
	}

	seen := make(map[string]bool)
	for _, coll := range c.Collections {
		if coll.Name == "" || coll.Path == "" {
			return fmt.Errorf("collection needs a name and a path: %+v", coll)
		}
		if seen[coll.Name] {
			return fmt.Errorf("duplicate collection name: %s", coll.Name)
		}
		seen[coll.Name] = true

		if coll.IsS3() && c.S3.Endpoint == "" {
			return fmt.Errorf("collection %s is on S3 but s3.endpoint is not set", coll.Name)
		}
	}

	return nil
}

// Embedding returns the model settings for embeddings.NewModel
func (c *Config) Embedding() embeddings.Config {
	return embeddings.Config{
		Provider:      string(c.Provider),
		Dimensions:    c.Dimensions,
		OllamaURL:     c.Ollama.URL,
		OllamaModel:   c.Ollama.Model,
		OpenAIKey:     c.OpenAI.APIKey,
		OpenAIModel:   c.OpenAI.Model,
		OpenAIBaseURL: c.OpenAI.BaseURL,
		CLIPURL:       c.CLIP.URL,
		CLIPModel:     c.CLIP.Model,
	}
}

// S3Options returns the connection settings for dataset.NewS3Client
func (c *Config) S3Options() dataset.S3Options {
	return dataset.S3Options{
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		Region:    c.S3.Region,
		Secure:    !c.S3.Insecure,
	}
}

// CacheFile returns the fingerprint cache path, defaulting to a file in the
// config directory
func (c *Config) CacheFile() (string, error) {
	if c.CachePath != "" {
		return ExpandHome(c.CachePath)
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, CacheFileName), nil
}

// Collection returns the collection settings with the given name
func (c *Config) Collection(name string) (CollectionConfig, bool) {
	for _, coll := range c.Collections {
		if coll.Name == name {
			return coll, true
		}
	}
	return CollectionConfig{}, false
}

// ExpandHome replaces a leading ~ in path with the home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName), nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// Load reads the configuration from the default location
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile reads the configuration from path. It returns nil, nil when the
// file does not exist.
func LoadFile(configPath string) (*Config, error) {
	// If config doesn't exist, return nil (not an error)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return &cfg, nil
}

// Save writes the configuration to the default location
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(cfg, configPath)
}

// SaveFile writes the configuration to path. Keys taken from the
// environment are not written.
func SaveFile(cfg *Config, configPath string) error {
	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	if out.OpenAI.UseEnv {
		out.OpenAI.APIKey = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold API keys
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if a configuration file exists
func Exists() (bool, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
