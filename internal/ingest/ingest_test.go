package ingest

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/logger"
)

var minimalPDF = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

type stubExtractor struct {
	text    string
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte, maxPages int) (*Extraction, error) {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &Extraction{Text: s.text, Pages: 1}, nil
}

func newTestIngestor(ex Extractor) *Ingestor {
	return NewIngestor(ex, NewSelectionStore(time.Minute), Config{MaxBytes: model.MaxReportBytes, MaxPages: 50}, logger.Nop())
}

func bytesUpload(data []byte, mimeType string) Upload {
	return Upload{
		FileName: "report.pdf",
		Size:     int64(len(data)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestIngestTooLargeNeverReads(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "x"})
	opened := false

	_, err := ing.Ingest(context.Background(), uuid.New(), Upload{
		FileName: "big.pdf",
		Size:     25 * 1000 * 1000,
		MimeType: model.MimeTypePDF,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return nil, stderrors.New("should not open")
		},
	})

	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
	assert.False(t, opened)
}

func TestIngestRejectsNonPDFDeclaredType(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "x"})

	for _, mt := range []string{"image/png", "text/plain", "", "application/pdfx"} {
		_, err := ing.Ingest(context.Background(), uuid.New(), bytesUpload(minimalPDF, mt))
		assert.ErrorIs(t, err, ErrUnsupportedType, mt)
	}
}

func TestIngestAcceptsPDFWithParameters(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "Hemoglobin: 13.5 g/dL"})

	doc, err := ing.Ingest(context.Background(), uuid.New(), bytesUpload(minimalPDF, "Application/PDF; name=x.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin: 13.5 g/dL", doc.ExtractedText)
}

func TestIngestRejectsDisguisedContent(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "x"})

	_, err := ing.Ingest(context.Background(), uuid.New(), bytesUpload([]byte("\x89PNG\r\n\x1a\nimage"), model.MimeTypePDF))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestIngestReadFailure(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "x"})

	_, err := ing.Ingest(context.Background(), uuid.New(), Upload{
		FileName: "r.pdf",
		Size:     10,
		MimeType: model.MimeTypePDF,
		Open: func() (io.ReadCloser, error) {
			return nil, stderrors.New("disk gone")
		},
	})
	assert.ErrorIs(t, err, ErrReadFailure)
}

func TestIngestUnderstatedSizeIsStillCapped(t *testing.T) {
	ing := NewIngestor(&stubExtractor{text: "x"}, NewSelectionStore(time.Minute), Config{MaxBytes: 16}, logger.Nop())

	upload := bytesUpload(append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 64)...), model.MimeTypePDF)
	upload.Size = 1
	_, err := ing.Ingest(context.Background(), uuid.New(), upload)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestIngestExtractionFailure(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{err: stderrors.New("bad xref")})

	_, err := ing.Ingest(context.Background(), uuid.New(), bytesUpload(minimalPDF, model.MimeTypePDF))
	assert.ErrorIs(t, err, ErrExtractionFailure)
}

func TestIngestTooManyPages(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{err: ErrTooManyPages})

	_, err := ing.Ingest(context.Background(), uuid.New(), bytesUpload(minimalPDF, model.MimeTypePDF))
	assert.ErrorIs(t, err, ErrTooManyPages)
	assert.True(t, errors.Is(err, errors.ErrBadRequest))
}

func TestIngestSelectionLifecycle(t *testing.T) {
	ing := newTestIngestor(&stubExtractor{text: "report"})
	owner := uuid.New()

	first, err := ing.Ingest(context.Background(), owner, bytesUpload(minimalPDF, model.MimeTypePDF))
	require.NoError(t, err)
	assert.NotNil(t, first.RawBytes)

	current, ok := ing.Current(owner)
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)

	second, err := ing.Ingest(context.Background(), owner, bytesUpload(minimalPDF, model.MimeTypePDF))
	require.NoError(t, err)
	assert.Nil(t, first.RawBytes, "replaced selection releases its bytes")

	assert.True(t, ing.Clear(owner))
	assert.Nil(t, second.RawBytes)
	_, ok = ing.Current(owner)
	assert.False(t, ok)
	assert.False(t, ing.Clear(owner))
}

func TestIngestGuardsConcurrentExtraction(t *testing.T) {
	ex := &stubExtractor{text: "x", started: make(chan struct{}), release: make(chan struct{})}
	ing := newTestIngestor(ex)
	owner := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := ing.Ingest(context.Background(), owner, bytesUpload(minimalPDF, model.MimeTypePDF))
		done <- err
	}()
	<-ex.started

	assert.True(t, ing.Extracting(owner))
	_, err := ing.Ingest(context.Background(), owner, bytesUpload(minimalPDF, model.MimeTypePDF))
	assert.ErrorIs(t, err, ErrExtractionInProgress)

	close(ex.release)
	require.NoError(t, <-done)
	assert.False(t, ing.Extracting(owner))
}
