package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/llm"
)

func (c *Client) Name() string { return c.ModelID() }

// ModelID is the identifier reported as model_used.
func (c *Client) ModelID() string { return "gemini/" + c.cfg.Model }

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Extract implements llm.Engine against models/{model}:generateContent.
func (c *Client) Extract(ctx context.Context, req llm.Request) (llm.ExtractionResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return llm.ExtractionResult{}, fmt.Errorf("gemini rate limit: %w", err)
	}
	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"engine", c.ModelID(),
		"document_type", req.DocumentType,
		"fields", len(req.FieldNames),
		"text_len", len(req.Text),
	)

	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": llm.BuildPrompt(req, c.cfg.MaxChars)}}},
		},
		"generationConfig": map[string]any{
			"temperature":      c.cfg.Temperature,
			"responseMimeType": "application/json",
		},
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	raw, _, err := llm.SendJSON(ctx, c.http, url, body, map[string]string{"x-goog-api-key": c.cfg.APIKey}, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ExtractionResult{}, fmt.Errorf("gemini generateContent: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.logger.Error("llm.extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.ExtractionResult{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		if gr.PromptFeedback.BlockReason != "" {
			return llm.ExtractionResult{}, fmt.Errorf("gemini blocked prompt: %s", gr.PromptFeedback.BlockReason)
		}
		return llm.ExtractionResult{}, fmt.Errorf("no candidates in gemini response")
	}
	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	res := llm.ParseResponse(text.String(), req, c.ModelID())
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"engine", c.ModelID(),
		"success", res.Success,
		"fields", len(res.Fields),
		"mean_confidence", res.MeanConfidence(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
