package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Extraction is the text recovered from a document.
type Extraction struct {
	Text  string
	Pages int
}

// Extractor turns decoded document bytes into plain text in document order.
type Extractor interface {
	Extract(ctx context.Context, data []byte, maxPages int) (*Extraction, error)
}

// PDFExtractor reads the text layer of a PDF page by page. Scanned PDFs
// without a text layer yield ErrExtractionFailure.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte, maxPages int) (out *Extraction, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: malformed pdf: %v", ErrExtractionFailure, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf reader: %v", ErrExtractionFailure, err)
	}

	pages := r.NumPage()
	if maxPages > 0 && pages > maxPages {
		return nil, fmt.Errorf("%w: %d pages, limit is %d", ErrTooManyPages, pages, maxPages)
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrExtractionFailure, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: no text layer found", ErrExtractionFailure)
	}
	return &Extraction{Text: sb.String(), Pages: pages}, nil
}

// SampleExtractor ignores the document and returns a fixed lab report. It
// backs demos and local development without real PDFs.
type SampleExtractor struct {
	now func() time.Time
}

func NewSampleExtractor() *SampleExtractor {
	return &SampleExtractor{now: time.Now}
}

func (e *SampleExtractor) Extract(ctx context.Context, data []byte, maxPages int) (*Extraction, error) {
	return &Extraction{
		Text:  fmt.Sprintf(sampleReport, e.now().Format("1/2/2006")),
		Pages: 1,
	}, nil
}

const sampleReport = `BLOOD TEST REPORT
Date: %s
Laboratory: HealthCare Diagnostics

COMPLETE BLOOD COUNT (CBC)
Hemoglobin: 13.5 g/dL (Reference: 12.0-15.5)
White Blood Cells: 7,500 /µL (Reference: 4,000-11,000)
Platelets: 250,000 /µL (Reference: 150,000-450,000)
Red Blood Cells: 4.8 M/µL (Reference: 4.0-5.2)
Hematocrit: 41%% (Reference: 36-46%%)

METABOLIC PANEL
Glucose (Fasting): 95 mg/dL (Reference: 70-100)
Creatinine: 0.9 mg/dL (Reference: 0.6-1.2)
BUN: 15 mg/dL (Reference: 7-20)

LIPID PROFILE
Total Cholesterol: 180 mg/dL (Reference: <200)
HDL Cholesterol: 55 mg/dL (Reference: >40)
LDL Cholesterol: 100 mg/dL (Reference: <100)
Triglycerides: 150 mg/dL (Reference: <150)`
