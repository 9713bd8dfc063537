package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/llm"
)

func (c *Client) Name() string { return c.ModelID() }

// ModelID is the identifier reported as model_used.
func (c *Client) ModelID() string { return "ollama/" + c.cfg.Model }

// Extract implements llm.Engine against /api/generate in JSON mode.
func (c *Client) Extract(ctx context.Context, req llm.Request) (llm.ExtractionResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"engine", c.ModelID(),
		"document_type", req.DocumentType,
		"fields", len(req.FieldNames),
		"text_len", len(req.Text),
	)

	body := map[string]any{
		"model":  c.cfg.Model,
		"prompt": llm.BuildPrompt(req, c.cfg.MaxChars),
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
		},
	}
	raw, _, err := llm.SendJSON(ctx, c.http, c.cfg.Host+"/api/generate", body, nil, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractionResult{}, fmt.Errorf("ollama generate: %w", err)
	}

	var gen struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &gen); err != nil {
		c.logger.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.ExtractionResult{}, fmt.Errorf("decode ollama response: %w", err)
	}
	if gen.Error != "" {
		return llm.ExtractionResult{}, fmt.Errorf("ollama: %s", gen.Error)
	}

	res := llm.ParseResponse(gen.Response, req, c.ModelID())
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"engine", c.ModelID(),
		"success", res.Success,
		"fields", len(res.Fields),
		"mean_confidence", res.MeanConfidence(),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Ping checks that the Ollama server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	if _, _, err := llm.GetJSON(ctx, c.http, c.cfg.Host+"/api/tags", nil, c.logger); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}
