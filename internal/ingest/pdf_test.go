package ingest

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	pageCount := len(pages)

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+i*2)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pageCount),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+i*2),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFExtractorReadsPagesInOrder(t *testing.T) {
	data := buildPDF("Hemoglobin 13.5 g/dL", "Platelets 250000")

	out, err := NewPDFExtractor().Extract(context.Background(), data, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Pages)

	first := bytes.Index([]byte(out.Text), []byte("Hemoglobin"))
	second := bytes.Index([]byte(out.Text), []byte("Platelets"))
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestPDFExtractorPageCap(t *testing.T) {
	data := buildPDF("a", "b", "c")

	_, err := NewPDFExtractor().Extract(context.Background(), data, 2)
	assert.ErrorIs(t, err, ErrTooManyPages)
}

func TestPDFExtractorGarbage(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), []byte("%PDF-1.4\nnot really"), 50)
	assert.ErrorIs(t, err, ErrExtractionFailure)
}

func TestSampleExtractorIgnoresInput(t *testing.T) {
	out, err := NewSampleExtractor().Extract(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "BLOOD TEST REPORT")
	assert.Contains(t, out.Text, "Hemoglobin: 13.5 g/dL")
	assert.Contains(t, out.Text, "Hematocrit: 41% (Reference: 36-46%)")
	assert.Equal(t, 1, out.Pages)
}
