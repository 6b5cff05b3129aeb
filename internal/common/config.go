package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Classify ClassifyConfig
	Analyze  AnalyzeConfig
	Insights InsightsConfig
	Pending  PendingConfig
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	UploadDir       string
	ShutdownTimeout time.Duration
}

// OCRConfig holds text-extraction configuration.
type OCRConfig struct {
	Pdftotext         string
	Pdftoppm          string
	Tesseract         string
	Magick            string
	TesseractLang     string
	DPI               int
	MaxPages          int
	SubprocessTimeout time.Duration
}

// LLMConfig holds the completion-endpoint configuration shared by all stages.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ClassifyConfig holds classifier-stage tuning.
type ClassifyConfig struct {
	MaxChars    int
	Temperature float32
	Timeout     time.Duration
}

// AnalyzeConfig holds analyzer-stage tuning.
type AnalyzeConfig struct {
	MaxChars           int
	Temperature        float32
	Timeout            time.Duration
	MismatchConfidence int
}

// InsightsConfig holds insight-generation tuning.
type InsightsConfig struct {
	MaxChars       int
	Temperature    float32
	Timeout        time.Duration
	MaxTokens      int
	RetryMaxTokens int
}

// PendingConfig selects and tunes the pending-ingestion store.
type PendingConfig struct {
	Backend   string // "memory" | "redis"
	TTL       time.Duration
	RedisAddr string
	RedisDB   int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			UploadDir:       getEnv("UPLOAD_DIR", os.TempDir()),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		OCR: OCRConfig{
			Pdftotext:         getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:          getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:         getEnv("TESSERACT_BIN", "tesseract"),
			Magick:            getEnv("MAGICK_BIN", "magick"),
			TesseractLang:     getEnv("TESSERACT_LANG", "por+eng"),
			DPI:               getEnvAsInt("OCR_DPI", 300),
			MaxPages:          getEnvAsInt("OCR_MAX_PAGES", 10),
			SubprocessTimeout: getEnvAsDuration("OCR_SUBPROCESS_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 120*time.Second),
		},
		Classify: ClassifyConfig{
			MaxChars:    getEnvAsInt("CLASSIFY_MAX_CHARS", 2000),
			Temperature: getEnvAsFloat32("CLASSIFY_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("CLASSIFY_TIMEOUT", 15*time.Second),
		},
		Analyze: AnalyzeConfig{
			MaxChars:           getEnvAsInt("ANALYZE_MAX_CHARS", 3500),
			Temperature:        getEnvAsFloat32("ANALYZE_TEMPERATURE", 0.2),
			Timeout:            getEnvAsDuration("ANALYZE_TIMEOUT", 90*time.Second),
			MismatchConfidence: getEnvAsInt("ANALYZE_MISMATCH_CONFIDENCE", 70),
		},
		Insights: InsightsConfig{
			MaxChars:       getEnvAsInt("INSIGHTS_MAX_CHARS", 5000),
			Temperature:    getEnvAsFloat32("INSIGHTS_TEMPERATURE", 0.4),
			Timeout:        getEnvAsDuration("INSIGHTS_TIMEOUT", 120*time.Second),
			MaxTokens:      getEnvAsInt("INSIGHTS_MAX_TOKENS", 1200),
			RetryMaxTokens: getEnvAsInt("INSIGHTS_RETRY_MAX_TOKENS", 600),
		},
		Pending: PendingConfig{
			Backend:   getEnv("PENDING_BACKEND", "memory"),
			TTL:       getEnvAsDuration("PENDING_TTL", 30*time.Minute),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvAsInt("REDIS_DB", 0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			return int32(n)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
