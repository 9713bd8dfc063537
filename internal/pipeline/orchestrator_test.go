package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/extract"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/llm"
	"github.com/joseph-ayodele/document-extractor/internal/ocr"
	"github.com/joseph-ayodele/document-extractor/internal/templates"
)

const nationalIDText = `Government of India
Unique Identification Authority of India
Ravi Kumar
DOB: 01/01/1990
MALE
1234 5678 9012
VID: 9134 5678 9012 3456
Aadhaar - Aam Aadmi ka Adhikar`

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake image body")

type stubExtractor struct {
	mu      sync.Mutex
	content extract.Content
	err     error
	panic   bool
	calls   int
}

func (s *stubExtractor) Extract(context.Context, ingest.LoadedDocument) (extract.Content, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panic {
		panic("corrupt xref table")
	}
	return s.content, s.err
}

type stubOCR struct {
	res   ocr.Result
	err   error
	calls int
}

func (s *stubOCR) ProcessAll(context.Context, []ocr.Image) (ocr.Result, error) {
	s.calls++
	return s.res, s.err
}

type stubLLM struct {
	mu    sync.Mutex
	fn    func(req llm.Request) llm.ExtractionResult
	err   error
	calls int
	last  llm.Request
}

func (s *stubLLM) Extract(_ context.Context, req llm.Request) (llm.ExtractionResult, error) {
	s.mu.Lock()
	s.calls++
	s.last = req
	s.mu.Unlock()
	if s.err != nil {
		return llm.ExtractionResult{}, s.err
	}
	return s.fn(req), nil
}

func (s *stubLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fields(model string, kv ...any) func(llm.Request) llm.ExtractionResult {
	return func(req llm.Request) llm.ExtractionResult {
		out := llm.ExtractionResult{DocumentType: req.DocumentType, Fields: map[string]llm.ExtractedField{}, Model: model, Success: true, RawResponse: "{}"}
		for i := 0; i+2 < len(kv)+1; i += 3 {
			name := kv[i].(string)
			out.Fields[name] = llm.ExtractedField{Name: name, Value: kv[i+1], Confidence: kv[i+2].(float64)}
		}
		return out
	}
}

type fixture struct {
	ext  *stubExtractor
	ocr  *stubOCR
	llm  *stubLLM
	orch *Orchestrator
}

func newFixture(t *testing.T, content extract.Content, ocrRes ocr.Result, fn func(llm.Request) llm.ExtractionResult, mods ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		ext: &stubExtractor{content: content},
		ocr: &stubOCR{res: ocrRes},
		llm: &stubLLM{fn: fn},
	}
	deps := Deps{
		Loader:    ingest.NewLoader(1<<20, nil),
		Extractor: f.ext,
		OCR:       f.ocr,
		LLM:       f.llm,
		Registry:  templates.Default(),
	}
	for _, m := range mods {
		m(&deps)
	}
	f.orch = NewOrchestrator(deps, Config{ConfidenceThreshold: 0.8}, nil)
	return f
}

func withRegistry(ts ...templates.Template) func(*Deps) {
	return func(d *Deps) { d.Registry = templates.NewRegistry(ts...) }
}

func assertConfidenceInvariant(t *testing.T, r ExtractionResponse) {
	t.Helper()
	for k := range r.ExtractedData {
		c, ok := r.FieldConfidences[k]
		assert.True(t, ok, "missing confidence for %s", k)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
	assert.GreaterOrEqual(t, r.OverallConfidence, 0.0)
	assert.LessOrEqual(t, r.OverallConfidence, 1.0)
	assert.NotEmpty(t, r.DocumentID)
	assert.Equal(t, "UTC", r.CreatedAt.Location().String())
}

func TestCleanNationalIDCompletes(t *testing.T) {
	f := newFixture(t,
		extract.Content{Images: []ocr.Image{{ID: "card.png", Data: pngBytes}}},
		ocr.Result{Text: nationalIDText, Confidence: 0.95, Engine: "tesseract"},
		fields("ollama/llama3.2",
			"full_name", "Ravi Kumar", 0.95,
			"aadhaar_number", "123456789012", 0.95,
			"date_of_birth", "01/01/1990", 0.9,
			"gender", "M", 0.9,
		),
	)

	res := f.orch.ProcessBytes(context.Background(), pngBytes, "card.png", "")
	r := res.Response
	require.True(t, res.Success, "%+v", r.Errors)
	assert.Equal(t, constants.StatusCompleted, r.Status)
	assert.Equal(t, constants.DocTypeIDDocument, r.DocumentType)
	assert.Equal(t, "aadhaar", res.Template)
	assert.Equal(t, "1234 5678 9012", r.ExtractedData["aadhaar_number"])
	assert.Equal(t, "Male", r.ExtractedData["gender"])
	assert.InDelta(t, 0.925, r.OverallConfidence, 1e-9)
	assert.Empty(t, r.Errors)
	assert.False(t, r.RequiresReview)
	assert.Equal(t, "ollama/llama3.2", r.ModelUsed)
	assert.Equal(t, "card.png", r.Filename)
	assertConfidenceInvariant(t, r)

	assert.True(t, res.OCRUsed)
	assert.Equal(t, 1, f.ocr.calls)
	assert.Equal(t, "id_document", f.llm.last.DocumentType)
	assert.Equal(t, templates.FieldNames(templates.NewAadhaar()), f.llm.last.FieldNames)
	assert.Equal(t, nationalIDText, f.llm.last.Text)
}

func TestEmptyInputRejectedBeforeEngines(t *testing.T) {
	f := newFixture(t, extract.Content{}, ocr.Result{}, fields("m"))
	res := f.orch.ProcessBytes(context.Background(), []byte{}, "scan.pdf", "")

	assert.False(t, res.Success)
	assert.Equal(t, constants.StatusFailed, res.Response.Status)
	assert.Equal(t, constants.DocTypeUnknown, res.Response.DocumentType)
	require.Len(t, res.Response.Errors, 1)
	assert.Equal(t, constants.ErrCodeProcessing, res.Response.Errors[0].Code)
	assert.Equal(t, "File is empty", res.Response.Errors[0].Message)
	assert.Equal(t, "Check file format and try again", res.Response.Errors[0].SuggestedAction)
	assert.NotEmpty(t, res.DocumentID)

	assert.Zero(t, f.ext.calls)
	assert.Zero(t, f.ocr.calls)
	assert.Zero(t, f.llm.Calls())
}

type essayTemplate struct{}

func (essayTemplate) Name() string                 { return "essay" }
func (essayTemplate) Category() constants.Category { return constants.CategoryEssay }
func (essayTemplate) Keywords() []string           { return []string{"essay"} }
func (essayTemplate) Classify(string) float64      { return 1 }
func (essayTemplate) PostProcess(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
func (essayTemplate) Fields() []templates.FieldDefinition {
	return []templates.FieldDefinition{{Name: "title", DisplayName: "Title", Type: templates.FieldString}, {Name: "author", DisplayName: "Author", Type: templates.FieldString}}
}
func (e essayTemplate) Validate(f map[string]any) []templates.Violation {
	return templates.ValidateFields(e.Fields(), f)
}

func TestAllNullFieldsIsLowConfidence(t *testing.T) {
	long := extract.Content{Text: "My essay on rivers. It is long enough to skip OCR entirely, more than one hundred characters of text here."}
	f := newFixture(t, long, ocr.Result{},
		fields("ollama/llama3.2", "title", nil, 0.0, "author", nil, 0.0),
		func(d *Deps) { d.Registry = templates.NewRegistry(essayTemplate{}) },
	)
	res := f.orch.ProcessBytes(context.Background(), []byte("%PDF-1.7"), "essay.pdf", "")
	r := res.Response

	assert.Equal(t, 0.0, r.OverallConfidence)
	assert.Equal(t, constants.StatusRequiresReview, r.Status)
	assert.True(t, r.RequiresReview)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, constants.ErrCodeLowConfidence, r.Errors[0].Code)
	assert.Equal(t, "Overall confidence 0.00 below threshold", r.Errors[0].Message)
	assert.Contains(t, r.ExtractedData, "title")
	assert.Nil(t, r.ExtractedData["title"])
	assertConfidenceInvariant(t, r)
	assert.Zero(t, f.ocr.calls, "text layer was long enough")
}

func TestMissingRequiredFieldNeedsReview(t *testing.T) {
	f := newFixture(t,
		extract.Content{Images: []ocr.Image{{Data: pngBytes}}},
		ocr.Result{Text: "PASSPORT Nationality Date of Birth", Confidence: 0.9},
		fields("gemini/gemini-1.5-flash",
			"full_name", "JANE DOE", 0.99,
			"date_of_birth", "1990-02-03", 0.97,
			"document_number", nil, 0.0,
		),
		withRegistry(templates.NewIDDocument()),
	)
	res := f.orch.ProcessBytes(context.Background(), pngBytes, "passport.jpg", "id_document")
	r := res.Response

	assert.Equal(t, "id_document", res.Template)
	assert.Equal(t, constants.StatusRequiresReview, r.Status)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, constants.ErrCodeValidation, r.Errors[0].Code)
	assert.Equal(t, "document_number", r.Errors[0].Field)
	assert.Contains(t, r.Errors[0].Message, "Document Number")
	assert.Equal(t, "Manual review required", r.Errors[0].SuggestedAction)
	assert.Equal(t, "Jane Doe", r.ExtractedData["full_name"])
	assert.InDelta(t, 0.98, r.OverallConfidence, 1e-9, "null fields do not count")
}

func TestCategoryHintUsesFirstTemplateOfCategory(t *testing.T) {
	f := newFixture(t,
		extract.Content{Images: []ocr.Image{{Data: pngBytes}}},
		ocr.Result{Text: "PASSPORT Nationality Date of Birth", Confidence: 0.9},
		fields("m", "full_name", "JANE DOE", 0.99),
	)
	res := f.orch.ProcessBytes(context.Background(), pngBytes, "passport.jpg", "id_document")

	assert.Equal(t, "uan", res.Template)
	assert.Equal(t, constants.StatusRequiresReview, res.Response.Status)
	assert.Contains(t, f.llm.last.FieldNames, "uan_number")
	var missing []string
	for _, e := range res.Response.Errors {
		if e.Code == constants.ErrCodeValidation {
			missing = append(missing, e.Field)
		}
	}
	assert.Contains(t, missing, "uan_number")
}

func TestLLMFailureIsFailed(t *testing.T) {
	f := newFixture(t, extract.Content{Text: nationalIDText + nationalIDText}, ocr.Result{},
		func(req llm.Request) llm.ExtractionResult {
			return llm.Failed(req.DocumentType, "ollama/llama3.2", "nope", "All extractors failed: connection refused")
		},
	)
	res := f.orch.ProcessBytes(context.Background(), []byte("%PDF-1.4"), "a.pdf", "")
	r := res.Response
	assert.True(t, res.Success, "processing itself succeeded")
	assert.Equal(t, constants.StatusFailed, r.Status)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, constants.ErrCodeLLM, r.Errors[0].Code)
	assert.Equal(t, "All extractors failed: connection refused", r.Errors[0].Message)
	assert.Equal(t, "nope", res.RawLLMResponse)
	assert.Equal(t, "ollama/llama3.2", r.ModelUsed)
}

func TestOCRDiscount(t *testing.T) {
	f := newFixture(t,
		extract.Content{Text: "short", Images: []ocr.Image{{Data: pngBytes}, {Data: pngBytes}}},
		ocr.Result{Text: "Official Transcript GPA credits", Confidence: 0.5},
		fields("m", "student_name", "asha rao", 1.0, "institution_name", "IIT", 1.0),
	)
	res := f.orch.ProcessBytes(context.Background(), []byte("%PDF-1.4"), "t.pdf", "")
	assert.Equal(t, "transcript", res.Template)
	assert.InDelta(t, 0.5, res.Response.OverallConfidence, 1e-9)
	assert.Equal(t, constants.ErrCodeLowConfidence, res.Response.Errors[0].Code)
	assert.Equal(t, "Asha Rao", res.Response.ExtractedData["student_name"])
	assert.Equal(t, "Official Transcript GPA credits", res.Text)
}

func TestPanicsAndErrorsBecomeProcessingErrors(t *testing.T) {
	f := newFixture(t, extract.Content{}, ocr.Result{}, fields("m"))
	f.ext.panic = true
	res := f.orch.ProcessBytes(context.Background(), []byte("%PDF-1.4"), "bad.pdf", "")
	assert.False(t, res.Success)
	assert.Equal(t, constants.StatusFailed, res.Response.Status)
	assert.Equal(t, "corrupt xref table", res.Response.Errors[0].Message)
	assert.Equal(t, StageReceived, res.FailedStage)

	f = newFixture(t, extract.Content{Images: []ocr.Image{{Data: pngBytes}}}, ocr.Result{}, fields("m"))
	f.ocr.err = errors.New("both OCR engines failed")
	res = f.orch.ProcessBytes(context.Background(), pngBytes, "x.png", "")
	assert.Equal(t, constants.ErrCodeProcessing, res.Response.Errors[0].Code)
	assert.Zero(t, f.llm.Calls())

	f = newFixture(t, extract.Content{Text: "x"}, ocr.Result{}, fields("m"))
	f.llm.err = context.DeadlineExceeded
	res = f.orch.ProcessBytes(context.Background(), pngBytes, "x.png", "")
	assert.Equal(t, StageClassified, res.FailedStage)
	assert.Contains(t, res.Response.Errors[0].Message, "deadline")
}

func TestDerivedFieldsGetConfidence(t *testing.T) {
	f := newFixture(t, extract.Content{Text: "x"}, ocr.Result{},
		fields("m", "first_name", "jane", 0.9, "last_name", "doe", 0.7, "date_of_birth", "1990", 0.9, "document_number", "P123", 0.9),
		withRegistry(templates.NewIDDocument()),
	)
	res := f.orch.ProcessBytes(context.Background(), []byte("%PDF"), "id.pdf", "id_document")
	r := res.Response
	assert.Equal(t, "Jane Doe", r.ExtractedData["full_name"])
	assert.InDelta(t, 0.7, r.FieldConfidences["full_name"], 1e-9)
	assertConfidenceInvariant(t, r)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, v []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
	return nil
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingSink) SaveDocument(_ context.Context, res ProcessingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, res.DocumentID)
	return nil
}

func TestCacheAndSink(t *testing.T) {
	cache := &memCache{data: map[string][]byte{}}
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, extract.Content{Text: "x"}, ocr.Result{},
		fields("m", "student_name", "A", 0.9, "institution_name", "B", 0.9),
		func(d *Deps) { d.Cache = cache; d.Sink = sink; d.Metrics = metrics },
	)

	first := f.orch.ProcessBytes(context.Background(), []byte("%PDF same"), "a.pdf", "transcript")
	second := f.orch.ProcessBytes(context.Background(), []byte("%PDF same"), "b.pdf", "transcript")
	third := f.orch.ProcessBytes(context.Background(), []byte("%PDF same"), "c.pdf", "certificate")

	assert.Equal(t, 2, f.llm.Calls())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, second.DocumentID, second.Response.DocumentID)
	assert.Equal(t, "b.pdf", second.Response.Filename)
	assert.Equal(t, first.Response.ExtractedData, second.Response.ExtractedData)

	assert.Equal(t, []string{first.DocumentID, second.DocumentID, third.DocumentID}, sink.ids)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.documents.WithLabelValues("completed", "transcript")))
}

func TestDecide(t *testing.T) {
	ok := llm.ExtractionResult{Success: true}
	bad := llm.ExtractionResult{Success: false, Error: "boom"}
	v := []templates.Violation{{Field: "a", Message: "Required field 'A' is missing"}, {Field: "b", Message: "Field 'B' should be a number"}}

	tests := []struct {
		name       string
		res        llm.ExtractionResult
		violations []templates.Violation
		overall    float64
		want       constants.DocumentStatus
		codes      []constants.ErrorCode
	}{
		{"llm failure wins", bad, v, 0.1, constants.StatusFailed, []constants.ErrorCode{constants.ErrCodeLLM}},
		{"validation before confidence", ok, v, 0.1, constants.StatusRequiresReview, []constants.ErrorCode{constants.ErrCodeValidation, constants.ErrCodeValidation}},
		{"low confidence", ok, nil, 0.79, constants.StatusRequiresReview, []constants.ErrorCode{constants.ErrCodeLowConfidence}},
		{"at threshold", ok, nil, 0.8, constants.StatusCompleted, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decide(tt.res, tt.violations, tt.overall, 0.8)
			assert.Equal(t, tt.want, out.Status)
			var codes []constants.ErrorCode
			for _, e := range out.Errors {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.codes, codes)
			assert.Equal(t, tt.want == constants.StatusRequiresReview, out.RequiresReview)
		})
	}
}

func TestOverallConfidenceAndDiscount(t *testing.T) {
	data := map[string]any{"a": "x", "b": nil, "c": 0.0}
	conf := map[string]float64{"a": 0.9, "b": 0.1, "c": 0.5}
	assert.InDelta(t, 0.7, OverallConfidence(data, conf), 1e-9)
	assert.Equal(t, 0.0, OverallConfidence(map[string]any{"a": nil}, conf))
	assert.Equal(t, 0.0, OverallConfidence(nil, nil))

	assert.InDelta(t, 0.45, DiscountForOCR(0.9, true, 0.5, 0.7), 1e-9)
	assert.Equal(t, 0.9, DiscountForOCR(0.9, true, 0.7, 0.7))
	assert.Equal(t, 0.9, DiscountForOCR(0.9, false, 0.1, 0.7))
}
