package config

import "time"

// Search result counts used when the configuration leaves them unset.
const (
	DefaultK    = 5
	DefaultMaxK = 100
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		case "onnx":
			cfg.Embedding.Model = "all-MiniLM-L6-v2"
		default:
			cfg.Embedding.Model = "xxhash-features"
		}
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider != "openai" {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.MaxInputChars == 0 {
		cfg.Embedding.MaxInputChars = 8000
	}
	if cfg.Embedding.MaxConcurrency == 0 {
		cfg.Embedding.MaxConcurrency = 4
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAI.APIKeyEnv == "" {
		cfg.Embedding.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "sqlite"
	}
	if cfg.Vector.Path == "" {
		cfg.Vector.Path = ".semdex/index"
	}
	if cfg.Vector.SQLiteDriver == "" {
		cfg.Vector.SQLiteDriver = "sqlite"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "documents"
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = DefaultK
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = DefaultMaxK
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx"}
		cfg.Watch.Extensions = append(cfg.Watch.Extensions, cfg.Extract.Formats...)
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	if cfg.NATS.ServiceName == "" {
		cfg.NATS.ServiceName = "semdex"
	}
	if cfg.NATS.Group == "" {
		cfg.NATS.Group = "semdex"
	}
}
