package openai

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// MaxPromptChars bounds the document text sent to the hosted model.
const MaxPromptChars = 30000

// Config for an OpenAI-compatible chat/completions endpoint.
type Config struct {
	APIKey      string
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
	MaxChars    int
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient fails with common.ErrUnavailable when no API key is configured.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY not set: %w", common.ErrUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = MaxPromptChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}, nil
}
