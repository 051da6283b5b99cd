package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MimeTypePDF = "application/pdf"

	// MaxReportBytes is the upload ceiling (20 MiB).
	MaxReportBytes int64 = 20 << 20
)

// ReportDocument is held in memory between upload and analysis. It is never
// persisted; only derived text and the analysis are.
type ReportDocument struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"-"`
	FileName      string    `json:"file_name"`
	SizeBytes     int64     `json:"size_bytes"`
	MimeType      string    `json:"mime_type"`
	Pages         int       `json:"pages"`
	ExtractedText string    `json:"extracted_text"`
	UploadedAt    time.Time `json:"uploaded_at"`
	RawBytes      []byte    `json:"-"`
}

// Release drops the decoded bytes.
func (d *ReportDocument) Release() {
	d.RawBytes = nil
}
