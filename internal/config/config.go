// Package config provides configuration loading and structs for the semdex server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogFormat string          `yaml:"log_format"`
	EnvFile   string          `yaml:"env_file"`
	Server    ServerConfig    `yaml:"server"`
	Extract   ExtractConfig   `yaml:"extract"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	NATS      NATSConfig      `yaml:"nats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ExtractConfig turns on decoders beyond .pdf and .docx. Extensions not
// listed are read as UTF-8 text.
type ExtractConfig struct {
	Formats []string `yaml:"formats"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "hash", "onnx" or "openai".
	Provider       string       `yaml:"provider"`
	Model          string       `yaml:"model"`
	ModelPath      string       `yaml:"model_path"`
	LibraryPath    string       `yaml:"library_path"`
	// Dimensions of 0 means the model's native size (openai only).
	Dimensions     int          `yaml:"dimensions"`
	MaxTokens      int          `yaml:"max_tokens"`
	MaxInputChars  int          `yaml:"max_input_chars"`
	MaxConcurrency int64        `yaml:"max_concurrency"`
	CacheSize      int          `yaml:"cache_size"`
	OpenAI         OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for OpenAI-compatible embedding APIs.
type OpenAIConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// APIKey resolves the key from the configured environment variable.
func (o OpenAIConfig) APIKey() string {
	return os.Getenv(o.APIKeyEnv)
}

// VectorConfig holds the vector index backend settings.
type VectorConfig struct {
	// Type is one of "sqlite", "chromem" or "memory".
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	// SQLiteDriver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
	SQLiteDriver string `yaml:"sqlite_driver"`
	Collection   string `yaml:"collection"`
	Compress     bool   `yaml:"compress"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Debounce    time.Duration `yaml:"debounce"`
}

// NATSConfig holds the NATS micro service settings.
type NATSConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Creds       string `yaml:"creds"`
	ServiceName string `yaml:"service_name"`
	Group       string `yaml:"group"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a configuration with every default applied.
// Relative paths are resolved against the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(".")
	return &cfg
}

// LoadEnv loads the configured env file into the process environment.
// A missing file is not an error; existing variables are not overridden.
func (c *Config) LoadEnv() error {
	if c.EnvFile == "" {
		return nil
	}
	if _, err := os.Stat(c.EnvFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(c.EnvFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if !slices.Contains([]string{"hash", "onnx", "openai"}, c.Embedding.Provider) {
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 || (c.Embedding.Dimensions == 0 && c.Embedding.Provider != "openai") {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if !slices.Contains([]string{"sqlite", "chromem", "memory"}, c.Vector.Type) {
		return fmt.Errorf("unknown vector index type %q", c.Vector.Type)
	}
	if c.Vector.Type == "sqlite" && !slices.Contains([]string{"sqlite3", "sqlite"}, c.Vector.SQLiteDriver) {
		return fmt.Errorf("unknown sqlite driver %q", c.Vector.SQLiteDriver)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search default_k (%d) exceeds max_k (%d)", c.Search.DefaultK, c.Search.MaxK)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats enabled without url")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Vector.Path = expandPath(c.Vector.Path, configDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
	if c.EnvFile != "" {
		c.EnvFile = expandPath(c.EnvFile, configDir)
	}
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
