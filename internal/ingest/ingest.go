package ingest

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/logger"
)

// Upload describes a file as received from the client. Open is not called
// until size and declared type have been checked.
type Upload struct {
	FileName string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

type Config struct {
	MaxBytes int64
	MaxPages int
}

type Ingestor struct {
	extractor  Extractor
	selections *SelectionStore
	cfg        Config
	logger     *logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewIngestor(extractor Extractor, selections *SelectionStore, cfg Config, log *logger.Logger) *Ingestor {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = model.MaxReportBytes
	}
	return &Ingestor{
		extractor:  extractor,
		selections: selections,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
		inFlight:   make(map[uuid.UUID]struct{}),
	}
}

// Ingest validates, decodes and extracts an uploaded report, then makes it
// the owner's current selection. Only one ingest per owner runs at a time.
func (i *Ingestor) Ingest(ctx context.Context, ownerID uuid.UUID, upload Upload) (*model.ReportDocument, error) {
	if upload.Size > i.cfg.MaxBytes {
		return nil, errors.Validation(
			fmt.Sprintf("file size must be less than %d MB", i.cfg.MaxBytes>>20), ErrTooLarge)
	}
	if !isPDF(upload.MimeType) {
		return nil, errors.Validation("only PDF files are supported", ErrUnsupportedType)
	}

	if !i.begin(ownerID) {
		return nil, errors.Conflict("a report is already being processed", ErrExtractionInProgress)
	}
	defer i.end(ownerID)

	data, err := i.read(upload)
	if err != nil {
		i.logger.Error(err, "Failed to read upload", "owner_id", ownerID.String(), "file", upload.FileName)
		return nil, err
	}

	if mt := mimetype.Detect(data); !mt.Is(model.MimeTypePDF) {
		return nil, errors.Validation("only PDF files are supported",
			fmt.Errorf("%w: content detected as %s", ErrUnsupportedType, mt.String()))
	}

	extraction, err := i.extractor.Extract(ctx, data, i.cfg.MaxPages)
	if err != nil {
		i.logger.Warn("Report extraction failed", "owner_id", ownerID.String(), "file", upload.FileName, "error", err.Error())
		switch {
		case stderrors.Is(err, ErrTooManyPages):
			return nil, errors.Validation(fmt.Sprintf("report must not exceed %d pages", i.cfg.MaxPages), err)
		case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, errors.BadRequest("could not extract text from the report", wrapExtraction(err))
		}
	}

	doc := &model.ReportDocument{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		FileName:      upload.FileName,
		SizeBytes:     int64(len(data)),
		MimeType:      model.MimeTypePDF,
		Pages:         extraction.Pages,
		ExtractedText: extraction.Text,
		UploadedAt:    i.now().UTC(),
		RawBytes:      data,
	}
	i.selections.Put(doc)

	i.logger.Info("Report ingested",
		"owner_id", ownerID.String(),
		"report_id", doc.ID.String(),
		"pages", doc.Pages,
		"size_bytes", doc.SizeBytes)
	return doc, nil
}

func (i *Ingestor) read(upload Upload) ([]byte, error) {
	if upload.Open == nil {
		return nil, errors.BadRequest("could not read the file", ErrReadFailure)
	}
	rc, err := upload.Open()
	if err != nil {
		return nil, errors.BadRequest("could not read the file", fmt.Errorf("%w: %v", ErrReadFailure, err))
	}
	defer rc.Close()

	buf := &bytes.Buffer{}
	// The declared size is client-controlled; never read past the limit.
	n, err := io.Copy(buf, io.LimitReader(rc, i.cfg.MaxBytes+1))
	if err != nil {
		return nil, errors.BadRequest("could not read the file", fmt.Errorf("%w: %v", ErrReadFailure, err))
	}
	if n > i.cfg.MaxBytes {
		return nil, errors.Validation(
			fmt.Sprintf("file size must be less than %d MB", i.cfg.MaxBytes>>20), ErrTooLarge)
	}
	if n == 0 {
		return nil, errors.BadRequest("the file is empty", ErrReadFailure)
	}
	return buf.Bytes(), nil
}

// Extracting reports whether an ingest is running for the owner.
func (i *Ingestor) Extracting(ownerID uuid.UUID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.inFlight[ownerID]
	return ok
}

// Current returns the owner's selected report, if any.
func (i *Ingestor) Current(ownerID uuid.UUID) (*model.ReportDocument, bool) {
	return i.selections.Get(ownerID)
}

// Clear drops the owner's selection and releases its bytes.
func (i *Ingestor) Clear(ownerID uuid.UUID) bool {
	return i.selections.Clear(ownerID)
}

func (i *Ingestor) begin(ownerID uuid.UUID) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, busy := i.inFlight[ownerID]; busy {
		return false
	}
	i.inFlight[ownerID] = struct{}{}
	return true
}

func (i *Ingestor) end(ownerID uuid.UUID) {
	i.mu.Lock()
	delete(i.inFlight, ownerID)
	i.mu.Unlock()
}

func isPDF(declared string) bool {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil {
		return false
	}
	return strings.EqualFold(mt, model.MimeTypePDF)
}

func wrapExtraction(err error) error {
	if stderrors.Is(err, ErrExtractionFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrExtractionFailure, err)
}
