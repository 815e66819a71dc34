package ingest

import "errors"

var (
	ErrHeaderNotFound = errors.New("ingest: header row not found")
	ErrMissingColumn  = errors.New("ingest: missing column")
	ErrNoRecords      = errors.New("ingest: no valid records")
	ErrNoUsableSheet  = errors.New("ingest: no usable sheet in workbook")
)
