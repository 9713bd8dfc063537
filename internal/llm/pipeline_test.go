package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	name  string
	res   ExtractionResult
	err   error
	calls int
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Extract(context.Context, Request) (ExtractionResult, error) {
	s.calls++
	if s.err != nil {
		return ExtractionResult{}, s.err
	}
	r := s.res
	r.Model = s.name
	return r, nil
}

func okResult(conf ...float64) ExtractionResult {
	fields := map[string]ExtractedField{}
	for i, c := range conf {
		name := string(rune('a' + i))
		fields[name] = ExtractedField{Name: name, Value: "v", Confidence: c}
	}
	return ExtractionResult{Fields: fields, Success: true}
}

func failed(msg string) ExtractionResult {
	return Failed("x", "", "garbage", msg)
}

func TestNeedsFallbackTable(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		res   ExtractionResult
		err   error
		onLow bool
		want  bool
	}{
		{"confident success", okResult(0.9, 0.8), nil, true, false},
		{"at threshold", okResult(0.7), nil, true, false},
		{"weak success", okResult(0.5), nil, true, true},
		{"weak success, low fallback disabled", okResult(0.5), nil, false, false},
		{"no fields counts as zero", okResult(), nil, true, true},
		{"unsuccessful", failed("bad json"), nil, false, true},
		{"error", ExtractionResult{}, boom, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsFallback(tt.res, tt.err, 0.7, tt.onLow))
		})
	}
}

func TestChooseTable(t *testing.T) {
	assert.Equal(t, ChooseFallback, Choose(okResult(0.4), okResult(0.6)))
	assert.Equal(t, ChoosePrimary, Choose(okResult(0.5), okResult(0.5)), "tie prefers primary")
	assert.Equal(t, ChoosePrimary, Choose(okResult(0.5), okResult(0.3)))
	assert.Equal(t, ChoosePrimary, Choose(okResult(0.1), failed("x")))
}

func TestPipelineExtract(t *testing.T) {
	cfg := PipelineConfig{Threshold: 0.7, FallbackOnLowConfidence: true}
	tests := []struct {
		name      string
		primary   *stubEngine
		fallback  Engine
		wantModel string
		wantOK    bool
		wantErr   string
		fbCalls   int
	}{
		{
			name:      "confident primary",
			primary:   &stubEngine{name: "ollama", res: okResult(0.9)},
			fallback:  &stubEngine{name: "gemini", res: okResult(1)},
			wantModel: "ollama", wantOK: true,
		},
		{
			name:      "weak primary, better fallback",
			primary:   &stubEngine{name: "ollama", res: okResult(0.4)},
			fallback:  &stubEngine{name: "gemini", res: okResult(0.8)},
			wantModel: "gemini", wantOK: true, fbCalls: 1,
		},
		{
			name:      "weak primary, tie",
			primary:   &stubEngine{name: "ollama", res: okResult(0.4)},
			fallback:  &stubEngine{name: "gemini", res: okResult(0.4)},
			wantModel: "ollama", wantOK: true, fbCalls: 1,
		},
		{
			name:      "weak primary, fallback errors",
			primary:   &stubEngine{name: "ollama", res: okResult(0.4)},
			fallback:  &stubEngine{name: "gemini", err: errors.New("quota")},
			wantModel: "ollama", wantOK: true, fbCalls: 1,
		},
		{
			name:      "primary error uses fallback",
			primary:   &stubEngine{name: "ollama", err: errors.New("connection refused")},
			fallback:  &stubEngine{name: "gemini", res: okResult(0.2)},
			wantModel: "gemini", wantOK: true, fbCalls: 1,
		},
		{
			name:      "unparseable primary uses fallback",
			primary:   &stubEngine{name: "ollama", res: failed("No JSON found in response")},
			fallback:  &stubEngine{name: "gemini", res: okResult(0.6)},
			wantModel: "gemini", wantOK: true, fbCalls: 1,
		},
		{
			name:      "unparseable primary, no fallback",
			primary:   &stubEngine{name: "ollama", res: failed("No JSON found in response")},
			fallback:  Unavailable("gemini", errors.New("GEMINI_API_KEY not set")),
			wantModel: "ollama", wantErr: "No JSON found in response",
		},
		{
			name:      "primary error, no fallback",
			primary:   &stubEngine{name: "ollama", err: errors.New("connection refused")},
			fallback:  nil,
			wantModel: "ollama", wantErr: "All extractors failed: connection refused",
		},
		{
			name:      "both error",
			primary:   &stubEngine{name: "ollama", err: errors.New("connection refused")},
			fallback:  &stubEngine{name: "gemini", err: errors.New("quota")},
			wantModel: "gemini", wantErr: "All extractors failed. primary: connection refused, fallback: quota", fbCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.primary, tt.fallback, cfg, nil)
			res, err := p.Extract(context.Background(), Request{DocumentType: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, res.Model)
			assert.Equal(t, tt.wantOK, res.Success)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, res.Error)
			}
			assert.Equal(t, 1, tt.primary.calls)
			if fb, isStub := tt.fallback.(*stubEngine); isStub {
				assert.Equal(t, tt.fbCalls, fb.calls)
			}
		})
	}
}

func TestPipelineNeverWorseThanPrimary(t *testing.T) {
	cfg := PipelineConfig{Threshold: 0.7, FallbackOnLowConfidence: true}
	for _, pc := range []float64{0, 0.2, 0.5, 0.69} {
		for _, fc := range []float64{0, 0.2, 0.5, 0.69, 0.95} {
			p := NewPipeline(&stubEngine{name: "p", res: okResult(pc)}, &stubEngine{name: "f", res: okResult(fc)}, cfg, nil)
			res, err := p.Extract(context.Background(), Request{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.MeanConfidence(), pc)
		}
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(&stubEngine{name: "p", err: context.Canceled}, &stubEngine{name: "f"}, PipelineConfig{}, nil)
	_, err := p.Extract(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnavailable(t *testing.T) {
	u := Unavailable("gemini", errors.New("no key"))
	assert.False(t, IsAvailable(u))
	assert.False(t, IsAvailable(nil))
	assert.True(t, IsAvailable(&stubEngine{}))
	assert.EqualError(t, UnavailableReason(u), "no key")
	p := NewPipeline(&stubEngine{name: "p"}, u, PipelineConfig{}, nil)
	assert.False(t, p.HasFallback())
}
