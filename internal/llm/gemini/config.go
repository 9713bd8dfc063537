package gemini

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// MaxPromptChars bounds the document text sent to the hosted model.
const MaxPromptChars = 30000

// Config for the Gemini client.
type Config struct {
	APIKey            string
	BaseURL           string  // default https://generativelanguage.googleapis.com/v1beta
	Model             string  // default gemini-1.5-flash
	Temperature       float32 // default 0.1
	Timeout           time.Duration
	MaxChars          int     // default MaxPromptChars
	RequestsPerSecond float64 // <= 0 disables limiting
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient fails with common.ErrUnavailable when no API key is configured.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY not set: %w", common.ErrUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
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
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}, nil
}
