package ingest

import "errors"

var (
	ErrTooLarge             = errors.New("file too large")
	ErrUnsupportedType      = errors.New("unsupported file type")
	ErrReadFailure          = errors.New("failed to read file")
	ErrExtractionFailure    = errors.New("failed to extract text")
	ErrTooManyPages         = errors.New("too many pages")
	ErrExtractionInProgress = errors.New("extraction already in progress")
)
