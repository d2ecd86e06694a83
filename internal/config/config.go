// Package config provides environment-driven configuration for ragd.
//
// Configuration is loaded from environment variables via koanf. Every
// variable has a default suitable for local development except secrets,
// which Validate rejects when unset. Secrets use the Secret type so they
// never leak through logs or JSON.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Vector database backends.
const (
	VectorBackendQdrant   = "QDRANT"
	VectorBackendPgvector = "PGVECTOR"
)

// Distance methods for vector similarity.
const (
	DistanceCosine = "cosine"
	DistanceDot    = "dot"
)

// LLM provider backends.
const (
	ProviderOpenAI        = "OPENAI"
	ProviderOpenRouter    = "OPENROUTER"
	ProviderGroq          = "GROQ"
	ProviderCohere        = "COHERE"
	ProviderGoogle        = "GOOGLE"
	ProviderMistralVision = "MISTRAL_VISION"
)

// Config is the root configuration for the ragd process.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Files     FilesConfig     `koanf:"files"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	Auth      AuthConfig      `koanf:"auth"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	LLM       LLMConfig       `koanf:"llm"`
	VectorDB  VectorDBConfig  `koanf:"vectordb"`
	Locale    LocaleConfig    `koanf:"locale"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// AppConfig holds application identity settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	FrontendURL string `koanf:"frontend_url"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// FilesConfig holds upload handling settings.
type FilesConfig struct {
	Dir              string   `koanf:"dir"`
	AllowedTypes     []string `koanf:"allowed_types"`
	MaxSizeMB        int      `koanf:"max_size_mb"`
	DefaultChunkSize int      `koanf:"default_chunk_size"`
}

// MaxSizeBytes returns the upload size limit in bytes.
func (f FilesConfig) MaxSizeBytes() int64 {
	return int64(f.MaxSizeMB) * 1024 * 1024
}

// TypeAllowed reports whether the given MIME type may be uploaded.
func (f FilesConfig) TypeAllowed(mimeType string) bool {
	for _, t := range f.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(t), mimeType) {
			return true
		}
	}
	return false
}

// PostgresConfig holds relational database connection settings.
type PostgresConfig struct {
	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	MaxConns int    `koanf:"max_conns"`
}

// URL returns a postgres:// connection URL.
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.Username, p.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

// AuthConfig holds token signing and bootstrap credentials.
type AuthConfig struct {
	SecretKey                Secret `koanf:"secret_key"`
	Algorithm                string `koanf:"algorithm"`
	AccessTokenExpireMinutes int    `koanf:"access_token_expire_minutes"`
	AdminResetAPIKey         Secret `koanf:"admin_reset_api_key"`
	InitialAdminEmail        string `koanf:"initial_admin_email"`
	InitialAdminPassword     Secret `koanf:"initial_admin_password"`
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// SMTPConfig holds outbound mail settings. Mail is optional: when Host is
// empty the mailer degrades to logging instead of sending.
type SMTPConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	User      string `koanf:"user"`
	Password  Secret `koanf:"password"`
	FromEmail string `koanf:"from_email"`
	FromName  string `koanf:"from_name"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// LLMConfig holds provider selection and model settings for generation,
// embedding, and vision.
type LLMConfig struct {
	GenerationBackend string `koanf:"generation_backend"`
	EmbeddingBackend  string `koanf:"embedding_backend"`
	VisionBackend     string `koanf:"vision_backend"`

	GenerationModelID  string `koanf:"generation_model_id"`
	EmbeddingModelID   string `koanf:"embedding_model_id"`
	EmbeddingModelSize int    `koanf:"embedding_model_size"`
	VisionModelID      string `koanf:"vision_model_id"`

	OpenAIAPIKey     Secret `koanf:"openai_api_key"`
	OpenAIAPIURL     string `koanf:"openai_api_url"`
	CohereAPIKey     Secret `koanf:"cohere_api_key"`
	GroqAPIKey       Secret `koanf:"groq_api_key"`
	GroqAPIURL       string `koanf:"groq_api_url"`
	OpenRouterAPIKey Secret `koanf:"openrouter_api_key"`
	OpenRouterAPIURL string `koanf:"openrouter_api_url"`
	GoogleAPIKey     Secret `koanf:"google_api_key"`
	MistralAPIKey    Secret `koanf:"mistral_api_key"`

	InputMaxCharacters int     `koanf:"input_max_characters"`
	MaxOutputTokens    int     `koanf:"max_output_tokens"`
	Temperature        float64 `koanf:"temperature"`
}

// VectorDBConfig selects and tunes the vector store backend.
type VectorDBConfig struct {
	Backend             string `koanf:"backend"`
	DistanceMethod      string `koanf:"distance_method"`
	PgvecIndexThreshold int    `koanf:"pgvec_index_threshold"`
	QdrantHost          string `koanf:"qdrant_host"`
	QdrantPort          int    `koanf:"qdrant_port"`
}

// LocaleConfig selects prompt template languages.
type LocaleConfig struct {
	Primary string `koanf:"primary"`
	Default string `koanf:"default"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

// Default returns a Config populated with development defaults.
// Secrets are left empty and must come from the environment.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "ragd",
			Version:     "0.1.0",
			FrontendURL: "http://localhost:3000",
		},
		Server: ServerConfig{
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Files: FilesConfig{
			Dir:              "assets/files",
			AllowedTypes:     []string{"text/plain", "application/pdf", "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
			MaxSizeMB:        10,
			DefaultChunkSize: 512000,
		},
		Postgres: PostgresConfig{
			Username: "postgres",
			Host:     "localhost",
			Port:     5432,
			Database: "ragd",
			MaxConns: 10,
		},
		Auth: AuthConfig{
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "ragd",
		},
		LLM: LLMConfig{
			GenerationBackend:  ProviderOpenAI,
			EmbeddingBackend:   ProviderOpenAI,
			VisionBackend:      ProviderOpenAI,
			EmbeddingModelSize: 1536,
			OpenAIAPIURL:       "https://api.openai.com/v1",
			GroqAPIURL:         "https://api.groq.com/openai/v1",
			OpenRouterAPIURL:   "https://openrouter.ai/api/v1",
			InputMaxCharacters: 1024,
			MaxOutputTokens:    200,
			Temperature:        0.1,
		},
		VectorDB: VectorDBConfig{
			Backend:             VectorBackendQdrant,
			DistanceMethod:      DistanceCosine,
			PgvecIndexThreshold: 100,
			QdrantHost:          "localhost",
			QdrantPort:          6334,
		},
		Locale: LocaleConfig{
			Primary: "en",
			Default: "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "ragd",
		},
	}
}

var generationBackends = map[string]bool{
	ProviderOpenAI:        true,
	ProviderOpenRouter:    true,
	ProviderGroq:          true,
	ProviderCohere:        true,
	ProviderGoogle:        true,
	ProviderMistralVision: true,
}

// embeddingBackends excludes COHERE: the cohere client exposes no
// embedding endpoint, so selecting it would fail at first use.
var embeddingBackends = map[string]bool{
	ProviderOpenAI:        true,
	ProviderOpenRouter:    true,
	ProviderGoogle:        true,
	ProviderMistralVision: true,
}

var visionBackends = map[string]bool{
	ProviderOpenAI:        true,
	ProviderGoogle:        true,
	ProviderMistralVision: true,
}

// Validate checks the configuration for values that would prevent the
// process from operating. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
		return fmt.Errorf("postgres port %d out of range", c.Postgres.Port)
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres database is required")
	}

	if !c.Auth.SecretKey.IsSet() {
		return fmt.Errorf("SECRET_KEY is required")
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported signing algorithm %q", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("access token expiry must be positive, got %d", c.Auth.AccessTokenExpireMinutes)
	}

	if !generationBackends[c.LLM.GenerationBackend] {
		return fmt.Errorf("unknown generation backend %q", c.LLM.GenerationBackend)
	}
	if !embeddingBackends[c.LLM.EmbeddingBackend] {
		return fmt.Errorf("unsupported embedding backend %q", c.LLM.EmbeddingBackend)
	}
	if !visionBackends[c.LLM.VisionBackend] {
		return fmt.Errorf("unsupported vision backend %q", c.LLM.VisionBackend)
	}
	if c.LLM.GenerationModelID == "" {
		return fmt.Errorf("GENERATION_MODEL_ID is required")
	}
	if c.LLM.EmbeddingModelID == "" {
		return fmt.Errorf("EMBEDDING_MODEL_ID is required")
	}
	if c.LLM.EmbeddingModelSize <= 0 {
		return fmt.Errorf("embedding model size must be positive, got %d", c.LLM.EmbeddingModelSize)
	}

	switch c.VectorDB.Backend {
	case VectorBackendQdrant, VectorBackendPgvector:
	default:
		return fmt.Errorf("unknown vector db backend %q", c.VectorDB.Backend)
	}
	switch c.VectorDB.DistanceMethod {
	case DistanceCosine, DistanceDot:
	default:
		return fmt.Errorf("unknown distance method %q", c.VectorDB.DistanceMethod)
	}
	if c.VectorDB.Backend == VectorBackendQdrant {
		if c.VectorDB.QdrantHost == "" {
			return fmt.Errorf("qdrant host is required for backend %s", VectorBackendQdrant)
		}
		if c.VectorDB.QdrantPort < 1 || c.VectorDB.QdrantPort > 65535 {
			return fmt.Errorf("qdrant port %d out of range", c.VectorDB.QdrantPort)
		}
	}
	if c.VectorDB.PgvecIndexThreshold < 0 {
		return fmt.Errorf("pgvector index threshold must not be negative, got %d", c.VectorDB.PgvecIndexThreshold)
	}

	if c.Files.MaxSizeMB <= 0 {
		return fmt.Errorf("file max size must be positive, got %d MB", c.Files.MaxSizeMB)
	}
	if c.Files.DefaultChunkSize <= 0 {
		return fmt.Errorf("default chunk size must be positive, got %d", c.Files.DefaultChunkSize)
	}

	if c.SMTP.Enabled() && c.SMTP.FromEmail == "" {
		return fmt.Errorf("EMAILS_FROM_EMAIL is required when SMTP is configured")
	}
	return nil
}
