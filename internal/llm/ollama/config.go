package ollama

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// MaxPromptChars bounds the document text sent to the local model.
const MaxPromptChars = 8000

// Config for the Ollama client.
type Config struct {
	Host        string        // default http://localhost:11434
	Model       string        // default llama3.2
	Temperature float32       // default 0.1
	Timeout     time.Duration // http client timeout
	MaxChars    int           // default MaxPromptChars
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = MaxPromptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
