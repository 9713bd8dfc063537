package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/document-extractor/internal/ingest"
)

const (
	wordNS     = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	maxXMLPart = 64 << 20
)

// DOCXExtractor reads body paragraphs and table rows from word/document.xml.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor { return &DOCXExtractor{} }

func (e *DOCXExtractor) Extract(ctx context.Context, doc ingest.LoadedDocument) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}
	zr, err := zip.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return Content{}, fmt.Errorf("open docx: %w", err)
	}
	body, err := readPart(zr, "word/document.xml")
	if err != nil {
		return Content{}, err
	}
	paragraphs, tables, err := parseDocumentXML(body)
	if err != nil {
		return Content{}, fmt.Errorf("parse document.xml: %w", err)
	}

	out := Content{Method: MethodDOCX, Pages: 1, Text: joinDOCX(paragraphs, tables)}
	if core, err := readPart(zr, "docProps/core.xml"); err == nil {
		out.Metadata = parseCoreProps(core)
	}
	return out, nil
}

func joinDOCX(paragraphs []string, tables [][][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(paragraphs, "\n"))
	for _, table := range tables {
		for _, row := range table {
			b.WriteString("\n")
			b.WriteString(strings.Join(row, " | "))
		}
	}
	return strings.TrimSpace(b.String())
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxXMLPart))
	}
	return nil, fmt.Errorf("%s: part not found", name)
}

// parseDocumentXML walks the body. Paragraphs inside tables belong to their
// cell, not to the paragraph list; nested tables fold into the outer cell.
func parseDocumentXML(data []byte) ([]string, [][][]string, error) {
	var (
		paragraphs []string
		tables     [][][]string
		rows       [][]string
		row        []string
		cell       []string
		para       strings.Builder
		inText     bool
		tblDepth   int
	)

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					rows = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell = nil
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := para.String()
				if tblDepth == 0 {
					if strings.TrimSpace(text) != "" {
						paragraphs = append(paragraphs, text)
					}
				} else {
					cell = append(cell, text)
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.TrimSpace(strings.Join(cell, "\n")))
				}
			case "tr":
				if tblDepth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				if tblDepth == 1 && len(rows) > 0 {
					tables = append(tables, rows)
				}
				tblDepth--
			}
		}
	}
	return paragraphs, tables, nil
}

func parseCoreProps(data []byte) map[string]string {
	var props struct {
		Title    string `xml:"title"`
		Subject  string `xml:"subject"`
		Creator  string `xml:"creator"`
		Created  string `xml:"created"`
		Modified string `xml:"modified"`
	}
	if err := xml.Unmarshal(data, &props); err != nil {
		return nil
	}
	md := map[string]string{}
	for k, v := range map[string]string{
		"title":    props.Title,
		"subject":  props.Subject,
		"author":   props.Creator,
		"created":  props.Created,
		"modified": props.Modified,
	} {
		if v = strings.TrimSpace(v); v != "" {
			md[k] = v
		}
	}
	return md
}
