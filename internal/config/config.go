package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the meetscribe server.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Store     StoreConfig
	Redis     RedisConfig
	Pipeline  PipelineConfig
	Summarize SummarizeConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type AuthConfig struct {
	// APIKey is the shared secret expected in the X-API-Key header.
	APIKey string
	// APIKeyHash, when set, is a bcrypt hash of the shared secret and takes
	// precedence over APIKey, so the plaintext never has to live in the
	// environment.
	APIKeyHash string
}

type StoreConfig struct {
	Backend   string // "file" or "postgres"
	JobDir    string
	UploadDir string
	Database  DatabaseConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string // optional; status caching and rate limiting are disabled when empty
}

type PipelineConfig struct {
	FFmpegBin        string
	WhisperBin       string
	ModelsDir        string
	DefaultModelSize string
	DefaultLanguage  string
	Timeout          time.Duration
	MaxConcurrent    int
}

type SummarizeConfig struct {
	Provider    string
	Timeout     time.Duration
	OpenAI      OpenAIConfig
	HuggingFace HuggingFaceConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type HuggingFaceConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

var validBackends = map[string]bool{
	"file":     true,
	"postgres": true,
}

var validProviders = map[string]bool{
	"openai":      true,
	"huggingface": true,
	"mock":        true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("MEETSCRIBE_PORT", 8080),
			Env:             envString("MEETSCRIBE_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Auth: AuthConfig{
			APIKey:     os.Getenv("MICRO_API_KEY"),
			APIKeyHash: os.Getenv("API_KEY_BCRYPT_HASH"),
		},
		Store: StoreConfig{
			Backend:   envString("STORE_BACKEND", "file"),
			JobDir:    envString("JOB_DIR", "job_data"),
			UploadDir: envString("UPLOAD_DIR", "uploads"),
			Database: DatabaseConfig{
				URL:             os.Getenv("DATABASE_URL"),
				MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			},
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Pipeline: PipelineConfig{
			FFmpegBin:        envString("FFMPEG_BIN", "ffmpeg"),
			WhisperBin:       envString("WHISPER_BIN", "whisper"),
			ModelsDir:        envString("MODELS_DIR", "models"),
			DefaultModelSize: envString("DEFAULT_WHISPER_MODEL", "base"),
			DefaultLanguage:  envString("DEFAULT_LANGUAGE", "de"),
			Timeout:          envDurationSecs("PIPELINE_TIMEOUT_SECS", 30*time.Minute),
			MaxConcurrent:    envInt("MAX_CONCURRENT_JOBS", 2),
		},
		Summarize: SummarizeConfig{
			Provider: envString("SUMMARY_PROVIDER", "openai"),
			Timeout:  envDurationSecs("SUMMARY_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				Model:   envString("OPENAI_MODEL", "gpt-3.5-turbo"),
			},
			HuggingFace: HuggingFaceConfig{
				APIKey:  os.Getenv("HUGGINGFACE_API_KEY"),
				BaseURL: envString("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co"),
				Model:   envString("HUGGINGFACE_MODEL", "facebook/bart-large-cnn"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.APIKey == "" && c.Auth.APIKeyHash == "" {
		return fmt.Errorf("MICRO_API_KEY or API_KEY_BCRYPT_HASH is required")
	}

	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("STORE_BACKEND must be one of file, postgres; got %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
	}

	if !validProviders[c.Summarize.Provider] {
		return fmt.Errorf("SUMMARY_PROVIDER must be one of openai, huggingface, mock; got %q", c.Summarize.Provider)
	}
	if c.Summarize.Provider == "openai" && c.Summarize.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when SUMMARY_PROVIDER is openai")
	}
	if c.Summarize.Provider == "huggingface" && c.Summarize.HuggingFace.APIKey == "" {
		return fmt.Errorf("HUGGINGFACE_API_KEY is required when SUMMARY_PROVIDER is huggingface")
	}

	if c.Pipeline.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
