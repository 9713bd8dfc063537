package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileEnv names the environment variable pointing at an optional TOML file.
const ConfigFileEnv = "DOCEX_CONFIG"

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	OCR      OCRConfig      `toml:"ocr"`
	LLM      LLMConfig      `toml:"llm"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Cache    CacheConfig    `toml:"cache"`
	Batch    BatchConfig    `toml:"batch"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `toml:"dsn"`
	SQLitePath       string        `toml:"sqlite_path"` // used when DSN is empty
	MaxConns         int32         `toml:"max_conns"`
	MinConns         int32         `toml:"min_conns"`
	MaxConnLifetime  time.Duration `toml:"-"`
	MaxConnIdleTime  time.Duration `toml:"-"`
	DialTimeout      time.Duration `toml:"-"`
	StatementTimeout time.Duration `toml:"-"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `toml:"grpc_addr"`
	HTTPAddr string `toml:"http_addr"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Primary           string   `toml:"primary"`  // gosseract | tesseract
	Fallback          string   `toml:"fallback"` // tesseract | none
	Tesseract         string   `toml:"tesseract"`
	Pdftoppm          string   `toml:"pdftoppm"`
	Languages         []string `toml:"languages"`
	TessdataDir       string   `toml:"tessdata_dir"`
	DPI               int      `toml:"dpi"`
	MaxPages          int      `toml:"max_pages"`
	FallbackThreshold float64  `toml:"fallback_threshold"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	OllamaHost  string `toml:"ollama_host"`
	OllamaModel string `toml:"ollama_model"`

	FallbackProvider string  `toml:"fallback_provider"` // gemini | openai | none
	GeminiAPIKey     string  `toml:"gemini_api_key"`
	GeminiModel      string  `toml:"gemini_model"`
	GeminiBaseURL    string  `toml:"gemini_base_url"`
	GeminiRPS        float64 `toml:"gemini_rps"`
	OpenAIAPIKey     string  `toml:"openai_api_key"`
	OpenAIBaseURL    string  `toml:"openai_base_url"`
	OpenAIModel      string  `toml:"openai_model"`

	Temperature             float32       `toml:"temperature"`
	Timeout                 time.Duration `toml:"-"`
	FallbackThreshold       float64       `toml:"fallback_threshold"`
	FallbackOnLowConfidence bool          `toml:"fallback_on_low_confidence"`
}

// PipelineConfig holds orchestration thresholds.
type PipelineConfig struct {
	ConfidenceThreshold  float64 `toml:"confidence_threshold"`
	MaxFileSizeMB        int     `toml:"max_file_size_mb"`
	MinTextLength        int     `toml:"min_text_length"`
	OCRDiscountThreshold float64 `toml:"ocr_discount_threshold"`
}

// MaxFileSizeBytes converts the configured limit to bytes.
func (p PipelineConfig) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

// CacheConfig holds result-cache configuration
type CacheConfig struct {
	Backend  string        `toml:"backend"` // none | memory | redis
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"-"`
}

// BatchConfig holds batch worker pool configuration
type BatchConfig struct {
	Workers         int           `toml:"workers"`
	QueueSize       int           `toml:"queue_size"`
	MaxDocuments    int           `toml:"max_documents"`
	DocumentTimeout time.Duration `toml:"-"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			HTTPAddr: ":8000",
		},
		OCR: OCRConfig{
			Primary:   "gosseract",
			Fallback:  "tesseract",
			Tesseract: "tesseract",
			Pdftoppm:  "pdftoppm",
			Languages: []string{"eng"},
			DPI:       200,
		},
		LLM: LLMConfig{
			OllamaHost:              "http://localhost:11434",
			OllamaModel:             "llama3.2",
			FallbackProvider:        "gemini",
			GeminiModel:             "gemini-1.5-flash",
			GeminiBaseURL:           "https://generativelanguage.googleapis.com/v1beta",
			GeminiRPS:               1,
			OpenAIBaseURL:           "https://api.openai.com/v1",
			OpenAIModel:             "gpt-4o-mini",
			Temperature:             0.1,
			Timeout:                 120 * time.Second,
			FallbackOnLowConfidence: true,
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold:  0.8,
			MaxFileSizeMB:        50,
			MinTextLength:        100,
			OCRDiscountThreshold: 0.7,
		},
		Cache: CacheConfig{
			Backend:  "none",
			RedisURL: "redis://localhost:6379/0",
			TTL:      24 * time.Hour,
		},
		Batch: BatchConfig{
			Workers:         4,
			QueueSize:       64,
			MaxDocuments:    20,
			DocumentTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional TOML file
// named by DOCEX_CONFIG, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile overlays values present in a TOML file onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	db := &c.Database
	db.DSN = getEnv("DB_URL", db.DSN)
	db.SQLitePath = getEnv("SQLITE_PATH", db.SQLitePath)
	db.MaxConns = getEnvAsInt32("DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvAsInt32("DB_MIN_CONNS", db.MinConns)
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", db.DialTimeout)
	db.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", db.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)

	o := &c.OCR
	o.Primary = getEnv("OCR_PRIMARY", o.Primary)
	o.Fallback = getEnv("OCR_FALLBACK", o.Fallback)
	o.Tesseract = getEnv("TESSERACT_BIN", o.Tesseract)
	o.Pdftoppm = getEnv("PDFTOPPM_BIN", o.Pdftoppm)
	o.Languages = getEnvAsList("OCR_LANGUAGES", o.Languages)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.DPI = getEnvAsInt("OCR_DPI", o.DPI)
	o.MaxPages = getEnvAsInt("OCR_MAX_PAGES", o.MaxPages)
	o.FallbackThreshold = getEnvAsFloat64("OCR_FALLBACK_THRESHOLD", o.FallbackThreshold)

	l := &c.LLM
	l.OllamaHost = getEnv("OLLAMA_HOST", l.OllamaHost)
	l.OllamaModel = getEnv("OLLAMA_MODEL", l.OllamaModel)
	l.FallbackProvider = getEnv("LLM_FALLBACK_PROVIDER", l.FallbackProvider)
	l.GeminiAPIKey = getEnv("GEMINI_API_KEY", l.GeminiAPIKey)
	l.GeminiModel = getEnv("GEMINI_MODEL", l.GeminiModel)
	l.GeminiBaseURL = getEnv("GEMINI_BASE_URL", l.GeminiBaseURL)
	l.GeminiRPS = getEnvAsFloat64("GEMINI_RPS", l.GeminiRPS)
	l.OpenAIAPIKey = getEnv("OPENAI_API_KEY", l.OpenAIAPIKey)
	l.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", l.OpenAIBaseURL)
	l.OpenAIModel = getEnv("OPENAI_MODEL", l.OpenAIModel)
	l.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", l.Temperature)
	l.Timeout = getEnvAsDuration("LLM_TIMEOUT", l.Timeout)
	l.FallbackThreshold = getEnvAsFloat64("LLM_FALLBACK_THRESHOLD", l.FallbackThreshold)
	l.FallbackOnLowConfidence = getEnvAsBool("LLM_FALLBACK_ON_LOW_CONFIDENCE", l.FallbackOnLowConfidence)

	p := &c.Pipeline
	p.ConfidenceThreshold = getEnvAsFloat64("CONFIDENCE_THRESHOLD", p.ConfidenceThreshold)
	p.MaxFileSizeMB = getEnvAsInt("MAX_FILE_SIZE_MB", p.MaxFileSizeMB)
	p.MinTextLength = getEnvAsInt("MIN_TEXT_LENGTH", p.MinTextLength)
	p.OCRDiscountThreshold = getEnvAsFloat64("OCR_DISCOUNT_THRESHOLD", p.OCRDiscountThreshold)

	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.RedisURL = getEnv("REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)

	c.Batch.Workers = getEnvAsInt("BATCH_WORKERS", c.Batch.Workers)
	c.Batch.QueueSize = getEnvAsInt("BATCH_QUEUE_SIZE", c.Batch.QueueSize)
	c.Batch.MaxDocuments = getEnvAsInt("BATCH_MAX_DOCUMENTS", c.Batch.MaxDocuments)
	c.Batch.DocumentTimeout = getEnvAsDuration("BATCH_DOCUMENT_TIMEOUT", c.Batch.DocumentTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// OCRFallbackThreshold is the primary OCR confidence under which the
// fallback engine runs. Unset, it follows Pipeline.ConfidenceThreshold.
func (c *Config) OCRFallbackThreshold() float64 {
	if c.OCR.FallbackThreshold > 0 {
		return c.OCR.FallbackThreshold
	}
	return c.Pipeline.ConfidenceThreshold
}

// LLMFallbackThreshold is the mean field confidence under which the LLM
// fallback engine runs. Unset, it follows Pipeline.ConfidenceThreshold.
func (c *Config) LLMFallbackThreshold() float64 {
	if c.LLM.FallbackThreshold > 0 {
		return c.LLM.FallbackThreshold
	}
	return c.Pipeline.ConfidenceThreshold
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	for name, v := range map[string]float64{
		"CONFIDENCE_THRESHOLD":   c.Pipeline.ConfidenceThreshold,
		"OCR_FALLBACK_THRESHOLD": c.OCR.FallbackThreshold,
		"LLM_FALLBACK_THRESHOLD": c.LLM.FallbackThreshold,
		"OCR_DISCOUNT_THRESHOLD": c.Pipeline.OCRDiscountThreshold,
	} {
		if v < 0 || v > 1 {
			return NewAppError("CONFIG_ERROR", fmt.Sprintf("%s must be within [0,1], got %v", name, v), ErrInvalidInput)
		}
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_FILE_SIZE_MB must be positive", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.OCR.Primary {
	case "gosseract", "tesseract":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR_PRIMARY %q", c.OCR.Primary), ErrInvalidInput)
	}
	switch c.OCR.Fallback {
	case "tesseract", "gosseract", "none", "":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR_FALLBACK %q", c.OCR.Fallback), ErrInvalidInput)
	}
	switch c.LLM.FallbackProvider {
	case "gemini", "openai", "none", "":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_FALLBACK_PROVIDER %q", c.LLM.FallbackProvider), ErrInvalidInput)
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis", "":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown CACHE_BACKEND %q", c.Cache.Backend), ErrInvalidInput)
	}
	return nil
}
