package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	HTTPMaxConnections     int
	HTTPRateLimitRPS       float64
	HTTPRateLimitBurst     int
	HTTPMaxInFlight        int
	HTTPMaxFilesPerRequest int
	OpenAPIValidation      bool

	SessionIdleTTL         time.Duration
	SessionJanitorInterval time.Duration
	MaxImageBytes          int64

	OCREngine           string
	OCRMaxConcurrency   int
	OCRTimeout          time.Duration
	OCRRetryMaxAttempts int
	OCRBreakerEnabled   bool
	OCRPDFTextLayer     bool
	OCRLanguageHint     string

	OllamaURL          string
	OllamaVisionModel  string
	VertexProject      string
	VertexRegion       string
	VertexModel        string
	TesseractLanguages []string
	ImageMaxPixels     int

	CameraSnapshotURL string
	CameraTimeout     time.Duration
	ClipboardBackend  string

	StorageBackend string
	StoragePath    string
	GCSBucket      string
	GCSPrefix      string

	EventsBackend string
	NATSURL       string
	NATSSubject   string

	PostgresDSN       string
	WorkerMetricsPort string

	MCPServerName    string
	MCPServerVersion string
}

// Load resolves settings from the process environment, then the YAML file named by
// TEXTIFY_CONFIG, then built-in defaults. A .env file in the working directory is
// loaded into the environment first without overriding variables already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	src, err := newSource(os.Getenv("TEXTIFY_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		APIPort:  src.mustEnv("API_PORT", "8080"),
		LogLevel: src.mustEnv("LOG_LEVEL", "info"),

		HTTPMaxConnections:     src.mustEnvInt("HTTP_MAX_CONNECTIONS", 512),
		HTTPRateLimitRPS:       src.mustEnvFloat("HTTP_RATE_LIMIT_RPS", 20),
		HTTPRateLimitBurst:     src.mustEnvInt("HTTP_RATE_LIMIT_BURST", 40),
		HTTPMaxInFlight:        src.mustEnvInt("HTTP_MAX_IN_FLIGHT", 64),
		HTTPMaxFilesPerRequest: src.mustEnvInt("HTTP_MAX_FILES_PER_REQUEST", 20),
		OpenAPIValidation:      src.mustEnvBool("OPENAPI_VALIDATION", true),

		SessionIdleTTL:         src.mustEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionJanitorInterval: src.mustEnvDuration("SESSION_JANITOR_INTERVAL", time.Minute),
		MaxImageBytes:          int64(src.mustEnvInt("MAX_IMAGE_BYTES", 4*1024*1024)),

		OCREngine:           strings.ToLower(src.mustEnv("OCR_ENGINE", "ollama")),
		OCRMaxConcurrency:   src.mustEnvInt("OCR_MAX_CONCURRENCY", 0),
		OCRTimeout:          time.Duration(src.mustEnvInt("OCR_TIMEOUT_SECONDS", 120)) * time.Second,
		OCRRetryMaxAttempts: src.mustEnvInt("OCR_RETRY_MAX_ATTEMPTS", 1),
		OCRBreakerEnabled:   src.mustEnvBool("OCR_BREAKER_ENABLED", true),
		OCRPDFTextLayer:     src.mustEnvBool("OCR_PDF_TEXT_LAYER", true),
		OCRLanguageHint:     src.mustEnv("OCR_LANGUAGE_HINT", ""),
		OllamaURL:           src.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaVisionModel:   src.mustEnv("OLLAMA_VISION_MODEL", "llama3.2-vision"),
		VertexProject:       src.mustEnv("VERTEX_PROJECT", ""),
		VertexRegion:        src.mustEnv("VERTEX_REGION", "us-central1"),
		VertexModel:         src.mustEnv("VERTEX_MODEL", "gemini-1.5-flash"),
		TesseractLanguages:  splitList(src.mustEnv("TESSERACT_LANGUAGES", "eng")),
		ImageMaxPixels:      src.mustEnvInt("IMAGE_MAX_PIXELS", 40_000_000),

		CameraSnapshotURL: src.mustEnv("CAMERA_SNAPSHOT_URL", ""),
		CameraTimeout:     time.Duration(src.mustEnvInt("CAMERA_TIMEOUT_SECONDS", 10)) * time.Second,
		ClipboardBackend:  strings.ToLower(src.mustEnv("CLIPBOARD_BACKEND", "memory")),

		StorageBackend: strings.ToLower(src.mustEnv("STORAGE_BACKEND", "localfs")),
		StoragePath:    src.mustEnv("STORAGE_PATH", "./data/exports"),
		GCSBucket:      src.mustEnv("GCS_BUCKET", ""),
		GCSPrefix:      src.mustEnv("GCS_PREFIX", "textify"),

		EventsBackend: strings.ToLower(src.mustEnv("EVENTS_BACKEND", "log")),
		NATSURL:       src.mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:   src.mustEnv("NATS_SUBJECT", "textify.events"),

		PostgresDSN:       src.mustEnv("POSTGRES_DSN", ""),
		WorkerMetricsPort: src.mustEnv("WORKER_METRICS_PORT", "9090"),

		MCPServerName:    src.mustEnv("MCP_SERVER_NAME", "textify"),
		MCPServerVersion: src.mustEnv("MCP_SERVER_VERSION", "0.1.0"),
	}, nil
}

// source looks a key up in the environment first and the overlay file second.
type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return src, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return src, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, value := range values {
		switch v := value.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			src.file[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			src.file[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return src, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(s.lookup(key))
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s.lookup(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(s.lookup(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s.lookup(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
