package workbook

import "errors"

var (
	ErrUnsupportedFormat = errors.New("workbook: unsupported format")
	ErrTooLarge          = errors.New("workbook: file too large")
)
