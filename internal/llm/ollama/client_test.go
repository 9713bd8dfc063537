package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/internal/llm"
)

func TestExtract(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		inner := `{"document_type":"pan_card","fields":{"pan_number":{"value":"ABCDE1234F","confidence":0.97}}}`
		_ = json.NewEncoder(w).Encode(map[string]any{"response": inner, "done": true})
	}))
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL + "/", Model: "llama3.2"}, nil)
	assert.Equal(t, "ollama/llama3.2", c.Name())

	res, err := c.Extract(context.Background(), llm.Request{
		Text:         strings.Repeat("x", MaxPromptChars+500),
		DocumentType: "pan_card",
		FieldNames:   []string{"pan_number"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ollama/llama3.2", res.Model)
	assert.Equal(t, "ABCDE1234F", res.Fields["pan_number"].Value)

	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
	prompt, _ := got["prompt"].(string)
	assert.Contains(t, prompt, strings.Repeat("x", MaxPromptChars))
	assert.NotContains(t, prompt, strings.Repeat("x", MaxPromptChars+1))
	opts, _ := got["options"].(map[string]any)
	assert.InDelta(t, 0.1, opts["temperature"], 1e-6)
}

func TestExtractUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "sorry, no idea"})
	}))
	defer srv.Close()

	res, err := NewClient(Config{Host: srv.URL}, nil).Extract(context.Background(), llm.Request{DocumentType: "essay"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No JSON found in response", res.Error)
	assert.Equal(t, "sorry, no idea", res.RawResponse)
}

func TestExtractServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(Config{Host: srv.URL}, nil).Extract(context.Background(), llm.Request{})
	assert.ErrorContains(t, err, "non-2xx status: 404")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	c := NewClient(Config{Host: srv.URL}, nil)
	require.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}
