package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envKeys maps environment variable names to configuration paths. The
// variable names are flat by convention (docker compose env files), so an
// explicit table is used instead of a prefix transform. Variables not
// listed here are ignored.
var envKeys = map[string]string{
	"APP_NAME":     "app.name",
	"APP_VERSION":  "app.version",
	"FRONTEND_URL": "app.frontend_url",

	"SERVER_PORT":             "server.port",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"FILES_DIR":               "files.dir",
	"FILE_ALLOWED_TYPES":      "files.allowed_types",
	"FILE_MAX_SIZE":           "files.max_size_mb",
	"FILE_DEFAULT_CHUNK_SIZE": "files.default_chunk_size",

	"POSTGRES_USERNAME":  "postgres.username",
	"POSTGRES_PASSWORD":  "postgres.password",
	"POSTGRES_HOST":      "postgres.host",
	"POSTGRES_PORT":      "postgres.port",
	"POSTGRES_MAIN_DB":   "postgres.database",
	"POSTGRES_MAX_CONNS": "postgres.max_conns",

	"SECRET_KEY":                  "auth.secret_key",
	"ALGORITHM":                   "auth.algorithm",
	"ACCESS_TOKEN_EXPIRE_MINUTES": "auth.access_token_expire_minutes",
	"ADMIN_RESET_API_KEY":         "auth.admin_reset_api_key",
	"INITIAL_ADMIN_EMAIL":         "auth.initial_admin_email",
	"INITIAL_ADMIN_PASSWORD":      "auth.initial_admin_password",

	"SMTP_HOST":         "smtp.host",
	"SMTP_PORT":         "smtp.port",
	"SMTP_USER":         "smtp.user",
	"SMTP_PASSWORD":     "smtp.password",
	"EMAILS_FROM_EMAIL": "smtp.from_email",
	"EMAILS_FROM_NAME":  "smtp.from_name",

	"GENERATION_BACKEND": "llm.generation_backend",
	"EMBEDDING_BACKEND":  "llm.embedding_backend",
	"VISION_BACKEND":     "llm.vision_backend",

	"GENERATION_MODEL_ID":  "llm.generation_model_id",
	"EMBEDDING_MODEL_ID":   "llm.embedding_model_id",
	"EMBEDDING_MODEL_SIZE": "llm.embedding_model_size",
	"VISION_MODEL_ID":      "llm.vision_model_id",

	"OPENAI_API_KEY":     "llm.openai_api_key",
	"OPENAI_API_URL":     "llm.openai_api_url",
	"COHERE_API_KEY":     "llm.cohere_api_key",
	"GROQ_API_KEY":       "llm.groq_api_key",
	"GROQ_API_URL":       "llm.groq_api_url",
	"OPENROUTER_API_KEY": "llm.openrouter_api_key",
	"OPENROUTER_API_URL": "llm.openrouter_api_url",
	"GOOGLE_API_KEY":     "llm.google_api_key",
	"MISTRAL_API_KEY":    "llm.mistral_api_key",

	"INPUT_DEFAULT_MAX_CHARACTERS":   "llm.input_max_characters",
	"GENERATION_DEFAULT_MAX_TOKENS":  "llm.max_output_tokens",
	"GENERATION_DEFAULT_TEMPERATURE": "llm.temperature",

	"VECTOR_DB_BACKEND":               "vectordb.backend",
	"VECTOR_DB_DISTANCE_METHOD":       "vectordb.distance_method",
	"VECTOR_DB_PGVEC_INDEX_THRESHOLD": "vectordb.pgvec_index_threshold",
	"QDRANT_HOST":                     "vectordb.qdrant_host",
	"QDRANT_GRPC_PORT":                "vectordb.qdrant_port",

	"PRIMARY_LANG": "locale.primary",
	"DEFAULT_LANG": "locale.default",

	"LOG_LEVEL":  "log.level",
	"LOG_FORMAT": "log.format",

	"OTEL_ENABLE":                 "telemetry.enabled",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.endpoint",
	"OTEL_SERVICE_NAME":           "telemetry.service_name",
}

// Load builds a Config from defaults overlaid with environment variables.
// The result is not validated; call Validate before use.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	return cfg, nil
}
