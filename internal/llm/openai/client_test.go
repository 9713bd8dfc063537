package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/llm"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestExtract(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		content := `{"fields":{"certificate_number":{"value":"C-42","confidence":0.88}}}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	res, err := c.Extract(context.Background(), llm.Request{DocumentType: "certificate", FieldNames: []string{"certificate_number"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "openai/gpt-4o-mini", res.Model)
	assert.InDelta(t, 0.88, res.Fields["certificate_number"].Confidence, 1e-9)

	rf, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
}

func TestExtractStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	_, err = c.Extract(context.Background(), llm.Request{})
	assert.ErrorContains(t, err, "openai status 429")
}
