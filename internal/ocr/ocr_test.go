package ocr

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t100\t10\t60\t20\t96.5\tGOVERNMENT\n" +
	"5\t1\t1\t1\t1\t2\t170\t12\t30\t20\t90\tOF\n" +
	"5\t1\t1\t1\t1\t3\t210\t11\t50\t20\t0\t~~\n" +
	"5\t1\t1\t1\t2\t1\t100\t60\t120\t20\t80\t1234\n" +
	"5\t1\t1\t1\t2\t2\t20\t62\t70\t20\t70\tNumber:\n"

func TestParseTSV(t *testing.T) {
	words := ParseTSV(sampleTSV)
	require.Len(t, words, 4)
	assert.Equal(t, "GOVERNMENT", words[0].Text)
	assert.InDelta(t, 0.965, words[0].Confidence, 1e-9)
	assert.Equal(t, BBox{X1: 100, Y1: 10, X2: 160, Y2: 30}, words[0].Box)
}

func TestTextFromWords(t *testing.T) {
	words := ParseTSV(sampleTSV)
	assert.Equal(t, "GOVERNMENT OF\nNumber: 1234", TextFromWords(words, 20))
	assert.Equal(t, "", TextFromWords(nil, 20))
}

func TestMeanConfidence(t *testing.T) {
	assert.Equal(t, 0.0, MeanConfidence(nil))
	assert.InDelta(t, 0.5, MeanConfidence([]Word{{Confidence: 0.25}, {Confidence: 0.75}}), 1e-9)
	r := NewResult("x", []Word{{Confidence: 0.6}}, "e")
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)
}

func TestCombineEmpty(t *testing.T) {
	r := Combine(nil)
	assert.Equal(t, CombinedEngine, r.Engine)
	assert.Equal(t, 0.0, r.Confidence)
}

func TestNormalize(t *testing.T) {
	in := "Name:\t\tJOHN   DOE  \r\n-----\r\n\r\n\r\n\r\nNo. 0123 4567\n"
	assert.Equal(t, "Name: JOHN DOE\n\nNo. 0123 4567", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

type stubRunner struct {
	stdout []byte
	err    error
	name   string
	args   []string
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.name, r.args = name, args
	if len(args) > 0 {
		if _, err := os.Stat(args[0]); err != nil {
			return nil, nil, errors.New("input image not written")
		}
	}
	return r.stdout, []byte("stderr text"), r.err
}

func TestTesseractCLI(t *testing.T) {
	run := &stubRunner{stdout: []byte(sampleTSV)}
	e := NewTesseractCLI(TesseractConfig{Languages: []string{"eng", "hin"}, PSM: 6}, run, nil)

	res, err := e.Recognize(context.Background(), Image{ID: "p1", Data: []byte("png bytes")})
	require.NoError(t, err)
	assert.Equal(t, "tesseract-cli", res.Engine)
	assert.Equal(t, "GOVERNMENT OF\nNumber: 1234", res.Text)
	assert.Len(t, res.Words, 4)
	assert.Equal(t, "tesseract", run.name)
	assert.Equal(t, "stdout -l eng+hin --psm 6 tsv", strings.Join(run.args[1:], " "))

	_, err = e.Recognize(context.Background(), Image{ID: "empty"})
	assert.Error(t, err)

	run.err = errors.New("exit status 1")
	_, err = e.Recognize(context.Background(), Image{ID: "p1", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stderr text")
}
