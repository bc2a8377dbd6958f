// Package deckimport reads foreign/english phrase pairs from spreadsheets.
package deckimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported import format (want .xlsx or .csv)")

// Config selects where the phrase pairs live.
type Config struct {
	SheetName     string // xlsx only; empty picks the first sheet
	ForeignColumn string // column letter, default "A"
	EnglishColumn string // column letter, default "B"
	SkipHeader    bool
}

func DefaultConfig() Config {
	return Config{ForeignColumn: "A", EnglishColumn: "B", SkipHeader: true}
}

// Row is one accepted phrase pair. Line is the 1-based source row.
type Row struct {
	Line        int
	ForeignText string
	EnglishText string
}

// Result holds accepted rows in file order plus per-row problems.
type Result struct {
	Rows    []Row
	Skipped int
	Errors  []string
}

// Parse reads r as xlsx or csv, chosen by filename extension.
func Parse(filename string, r io.Reader, cfg Config) (Result, error) {
	if cfg.ForeignColumn == "" {
		cfg.ForeignColumn = "A"
	}
	if cfg.EnglishColumn == "" {
		cfg.EnglishColumn = "B"
	}
	foreignIdx, err := excelize.ColumnNameToNumber(cfg.ForeignColumn)
	if err != nil {
		return Result{}, fmt.Errorf("foreign column: %w", err)
	}
	englishIdx, err := excelize.ColumnNameToNumber(cfg.EnglishColumn)
	if err != nil {
		return Result{}, fmt.Errorf("english column: %w", err)
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcel(r, cfg.SheetName)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return Result{}, ErrUnsupportedFormat
	}
	if err != nil {
		return Result{}, err
	}
	return collect(rows, foreignIdx-1, englishIdx-1, cfg.SkipHeader), nil
}

func readExcel(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func collect(rows [][]string, foreignIdx, englishIdx int, skipHeader bool) Result {
	res := Result{Rows: []Row{}, Errors: []string{}}
	for i, row := range rows {
		line := i + 1
		if skipHeader && i == 0 {
			continue
		}
		foreign := cell(row, foreignIdx)
		english := cell(row, englishIdx)
		switch {
		case foreign == "" && english == "":
			res.Skipped++
		case foreign == "":
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: foreign text is empty", line))
		case english == "":
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: english text is empty", line))
		default:
			res.Rows = append(res.Rows, Row{Line: line, ForeignText: foreign, EnglishText: english})
		}
	}
	return res
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(row[idx], "\ufeff"))
}
