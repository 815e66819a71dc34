// Package workbook decodes spreadsheet exports into named grids of raw cell
// text.
//
// Supported formats:
//   - .xlsx, .xlsm: Office Open XML (excelize, raw cell values)
//   - .xls: legacy BIFF workbooks (extrame/xls)
//   - .csv: one sheet, ';' ',' or tab separated, UTF-8 or Windows-1252
//
// Cells are returned unformatted: a date cell in an xlsx file comes back as
// its serial number and is coerced later by the ingest package.
//
// Usage:
//
//	r := workbook.New(workbook.Config{})
//	wb, err := r.Read(ctx, "Controle - Obras.xlsx", file)
package workbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Reader decodes workbooks.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Reader with the given configuration.
func New(cfg Config) *Reader {
	cfg.defaults()
	return &Reader{cfg: cfg, logger: cfg.Logger}
}

// Detect returns the workbook format based on file extension.
func (r *Reader) Detect(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// sniff guesses the format of content whose name carries no known extension.
func sniff(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, true
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, true
	}
	return "", false
}

// Read decodes src. name is used for format detection; when its extension is
// unknown the leading bytes decide.
func (r *Reader) Read(ctx context.Context, name string, src io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > r.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, name, humanize.IBytes(uint64(r.cfg.MaxFileSize)))
	}

	format, err := r.Detect(name)
	if err != nil {
		sniffed, ok := sniff(data)
		if !ok {
			return nil, err
		}
		format = sniffed
	}

	r.logger.Debug("reading workbook", "name", name, "format", format, "size", humanize.IBytes(uint64(len(data))))

	var sheets []Sheet
	switch format {
	case FormatXLSX:
		sheets, err = readXLSX(ctx, data)
	case FormatXLS:
		sheets, err = readXLS(ctx, data)
	case FormatCSV:
		sheets, err = readCSV(name, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", name, format, err)
	}

	return &Workbook{Name: filepath.Base(name), Format: format, Sheets: sheets}, nil
}

// ReadFile opens path and decodes it.
func (r *Reader) ReadFile(ctx context.Context, path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return r.Read(ctx, path, f)
}
