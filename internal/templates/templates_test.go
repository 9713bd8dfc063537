package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/document-extractor/constants"
)

const aadhaarScan = `Government of India
Unique Identification Authority of India
Ravi Kumar
DOB: 01/01/1990
MALE
1234 5678 9012
VID: 9134 5678 9012 3456
Aadhaar - Aam Aadmi ka Adhikar`

func TestDefaultRegistryOrder(t *testing.T) {
	var names []string
	for _, tpl := range Default().Templates() {
		names = append(names, tpl.Name())
	}
	assert.Equal(t, []string{
		"uan", "aadhaar", "pan", "voter_id", "driving_license",
		"transcript", "id_document", "certificate",
	}, names)
}

func TestSelectClassifiesNationalID(t *testing.T) {
	sel := Default().Select(aadhaarScan, "")
	require.NotNil(t, sel.Template)
	assert.Equal(t, "aadhaar", sel.Template.Name())
	assert.Equal(t, constants.CategoryIDDocument, sel.Template.Category())
	assert.False(t, sel.ByHint)
	assert.InDelta(t, 0.5, sel.Score, 1e-9)
	assert.Len(t, sel.Scores, 8)
}

func TestSelectFallsBackToFirstWhenNothingMatches(t *testing.T) {
	sel := Default().Select("lorem ipsum", "")
	assert.Equal(t, "uan", sel.Template.Name())
	assert.Zero(t, sel.Score)
}

func TestSelectTieBreakPrefersEarlier(t *testing.T) {
	first := base{name: "first", category: constants.CategoryEssay, keywords: []string{"alpha", "beta"}}
	second := base{name: "second", category: constants.CategoryEssay, keywords: []string{"alpha", "gamma"}}
	third := base{name: "third", category: constants.CategoryEssay, keywords: []string{"delta"}}

	sel := NewRegistry(third, first, second).Select("alpha only", "")
	assert.Equal(t, "first", sel.Template.Name())
	assert.InDelta(t, 0.5, sel.Score, 1e-9)

	sel = NewRegistry(third, second, first).Select("alpha only", "")
	assert.Equal(t, "second", sel.Template.Name())
}

func TestSelectHint(t *testing.T) {
	r := Default()
	tests := []struct {
		hint   string
		want   string
		byHint bool
	}{
		{"aadhaar", "aadhaar", true},
		{"  PAN ", "pan", true},
		{"transcript", "transcript", true},
		{"certificate", "certificate", true},
		{"id_document", "uan", true},
		{"identity", "uan", true},
		{"ID-Document", "uan", true},
		{"driving_license", "driving_license", true},
		{"recommendation", "aadhaar", false},
		{"nonsense", "aadhaar", false},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			sel := r.Select(aadhaarScan, tt.hint)
			assert.Equal(t, tt.want, sel.Template.Name())
			assert.Equal(t, tt.byHint, sel.ByHint)
		})
	}
}

func TestCategoryHintPrefersFirstRegistered(t *testing.T) {
	r := Default()
	sel := r.Select("PASSPORT Nationality Date of Birth", "id_document")
	assert.Equal(t, "uan", sel.Template.Name())
	assert.True(t, sel.ByHint)

	// synonyms of one category share a schema
	for _, hint := range []string{"id", "identity", "id_card", "id_document"} {
		tpl, ok := r.Resolve(hint)
		require.True(t, ok, hint)
		assert.Equal(t, "uan", tpl.Name(), hint)
	}

	// a custom registry without the generic name still resolves by category
	custom := NewRegistry(NewPAN(), NewIDDocument())
	tpl, ok := custom.Resolve("id_document")
	require.True(t, ok)
	assert.Equal(t, "pan", tpl.Name())
}

func TestKeywordScore(t *testing.T) {
	assert.Zero(t, KeywordScore("anything", nil))
	assert.InDelta(t, 2.0/7.0, KeywordScore("issued via nsdl / uti", NewPAN().Keywords()), 1e-9)
	assert.Equal(t, 1.0, KeywordScore("Official Transcript GPA", []string{"transcript", "gpa"}))
}

func TestValidate(t *testing.T) {
	id := NewIDDocument()
	v := id.Validate(map[string]any{"full_name": "Jane Doe", "date_of_birth": "1990-01-01", "document_number": ""})
	require.Len(t, v, 1)
	assert.Equal(t, Violation{Field: "document_number", Message: "Required field 'Document Number' is missing"}, v[0])

	tr := NewTranscript()
	v = tr.Validate(map[string]any{
		"student_name":     "A",
		"institution_name": "B",
		"gpa":              "three",
		"total_credits":    "1,240",
	})
	require.Len(t, v, 1)
	assert.Equal(t, "Field 'GPA' should be a number", v[0].Message)
	assert.Equal(t, "gpa", v[0].Field)

	assert.Empty(t, tr.Validate(map[string]any{"student_name": "A", "institution_name": "B", "gpa": 3.7, "total_credits": nil}))

	v = NewVoterID().Validate(map[string]any{})
	assert.Len(t, v, 2)
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{3.7, true},
		{42, true},
		{" 3.5 ", true},
		{"1,240", true},
		{"-1.5e3", true},
		{".5", true},
		{"5.", true},
		{"1_000", true},
		{"inf", true},
		{"NaN", true},
		{"0x1p3", false},
		{"1__0", false},
		{"_1", false},
		{"1_", false},
		{"three", false},
		{"", false},
		{"e5", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNumeric(tt.in), "%v", tt.in)
	}
}

func TestPostProcess(t *testing.T) {
	tests := []struct {
		name string
		tpl  Template
		in   map[string]any
		want map[string]any
	}{
		{
			name: "aadhaar groups digits",
			tpl:  NewAadhaar(),
			in:   map[string]any{"aadhaar_number": "123456789012", "gender": "m", "full_name": "RAVI KUMAR"},
			want: map[string]any{"aadhaar_number": "1234 5678 9012", "gender": "Male", "full_name": "RAVI KUMAR"},
		},
		{
			name: "aadhaar numeric value",
			tpl:  NewAadhaar(),
			in:   map[string]any{"aadhaar_number": float64(123456789012), "gender": "महिला"},
			want: map[string]any{"aadhaar_number": "1234 5678 9012", "gender": "Female"},
		},
		{
			name: "aadhaar leaves short numbers",
			tpl:  NewAadhaar(),
			in:   map[string]any{"aadhaar_number": "1234-5678", "gender": "X"},
			want: map[string]any{"aadhaar_number": "1234-5678", "gender": "X"},
		},
		{
			name: "pan upper-cased",
			tpl:  NewPAN(),
			in:   map[string]any{"pan_number": " abcde1234f "},
			want: map[string]any{"pan_number": "ABCDE1234F"},
		},
		{
			name: "uan compacted",
			tpl:  NewUAN(),
			in:   map[string]any{"uan_number": "1001-2345 6789", "member_name": "asha  devi"},
			want: map[string]any{"uan_number": "100123456789", "member_name": "Asha  Devi"},
		},
		{
			name: "transcript gpa",
			tpl:  NewTranscript(),
			in:   map[string]any{"gpa": "3.85 / 4.0", "student_name": " john o'neil "},
			want: map[string]any{"gpa": 3.85, "student_name": "John O'Neil"},
		},
		{
			name: "id document derives full name",
			tpl:  NewIDDocument(),
			in:   map[string]any{"full_name": nil, "first_name": "jane", "last_name": "DOE", "gender": "F"},
			want: map[string]any{"full_name": "Jane Doe", "first_name": "Jane", "last_name": "Doe", "gender": "Female"},
		},
		{
			name: "certificate strips prefixes",
			tpl:  NewCertificate(),
			in:   map[string]any{"certificate_title": "CERTIFICATE OF Certificate for Excellence", "recipient_name": "maria garcia"},
			want: map[string]any{"certificate_title": "Excellence", "recipient_name": "Maria Garcia"},
		},
		{
			name: "pan keeps list values",
			tpl:  NewPAN(),
			in:   map[string]any{"pan_number": []any{"abcde1234f"}},
			want: map[string]any{"pan_number": []any{"abcde1234f"}},
		},
		{
			name: "gender list untouched",
			tpl:  NewAadhaar(),
			in:   map[string]any{"gender": []any{"M"}},
			want: map[string]any{"gender": []any{"M"}},
		},
		{
			name: "id document skips non-scalar name parts",
			tpl:  NewIDDocument(),
			in:   map[string]any{"full_name": nil, "first_name": []any{"x"}, "last_name": "doe"},
			want: map[string]any{"full_name": "Doe", "first_name": []any{"x"}, "last_name": "Doe"},
		},
		{
			name: "voter passes through",
			tpl:  NewVoterID(),
			in:   map[string]any{"epic_number": "abc1234567"},
			want: map[string]any{"epic_number": "abc1234567"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := copyFields(tt.in)
			got := tt.tpl.PostProcess(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, in, tt.in, "input must not be mutated")
		})
	}
}

func TestPostProcessIdempotent(t *testing.T) {
	samples := []map[string]any{
		{},
		{"full_name": "  ravi KUMAR ", "gender": "male", "aadhaar_number": "1234-5678-9012"},
		{"first_name": "ana", "last_name": nil, "gender": "FEMALE", "document_number": "x1"},
		{"member_name": "asha", "uan_number": "1001 2345 6789"},
		{"pan_number": "abcde1234f", "full_name": "x"},
		{"gpa": "GPA 9.1 of 10", "student_name": "li wei", "courses": []any{"Math"}},
		{"gpa": 3.0, "student_name": nil},
		{"certificate_title": "certificate for certificate of Merit", "recipient_name": "3rd place team"},
		{"certificate_title": "Certificate of ", "recipient_name": ""},
		{"aadhaar_number": float64(987654321098), "gender": "पुरुष"},
	}
	for _, tpl := range Default().Templates() {
		for i, s := range samples {
			once := tpl.PostProcess(s)
			twice := tpl.PostProcess(once)
			assert.Equal(t, once, twice, "%s sample %d", tpl.Name(), i)
		}
	}
}

func TestDescribe(t *testing.T) {
	infos := Default().Describe()
	require.Len(t, infos, 8)
	assert.Equal(t, "uan", infos[0].Name)
	assert.Equal(t, constants.CategoryCertificate, infos[7].Category)
	assert.Equal(t, "student_name", infos[5].Fields[0].Name)
	assert.True(t, infos[5].Fields[0].Required)

	idx := FieldNames(NewIDDocument())
	assert.Contains(t, idx, "document_number")

	_, ok := NewIDDocument().(Deriver)
	assert.True(t, ok)
}
