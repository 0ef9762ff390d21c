package boq

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Diagnostics counts what happened to the rows of a file.
type Diagnostics struct {
	TotalRows   int `json:"total_rows"`
	ItemRows    int `json:"item_rows"`
	SkippedRows int `json:"skipped_rows"` // section headers + discards
}

// ParseResult is the full outcome of parsing one BOQ file.
type ParseResult struct {
	Items       []LineItem
	Sections    []string
	TotalAmount decimal.Decimal
	Diagnostics Diagnostics
}

// Parse reads a BOQ file from memory and extracts its line items. The
// format is chosen by extension alone: .csv and .xlsx are supported,
// legacy .xls is rejected with a resave hint, anything else is
// unsupported. Given identical bytes the result is identical; the
// function performs no I/O beyond the provided buffer.
func Parse(data []byte, fileName string) (*ParseResult, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		rows, err := readCSV(data)
		if err != nil {
			return nil, err
		}
		return parseRows(rows)
	case ".xlsx":
		rows, err := readXLSX(data)
		if err != nil {
			return nil, err
		}
		return parseRows(rows)
	case ".xls":
		return nil, &FormatError{Msg: "legacy .xls files are not supported; please resave the file as .xlsx"}
	default:
		return nil, &FormatError{Msg: fmt.Sprintf("unsupported file type %q; upload a .csv or .xlsx file", filepath.Ext(fileName))}
	}
}

func readCSV(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1 // BOQ exports routinely have ragged rows

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, &StructuralError{Msg: "corrupted CSV file: " + err.Error()}
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &StructuralError{Msg: "corrupted spreadsheet file: " + err.Error()}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &StructuralError{Msg: "spreadsheet has no worksheets"}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &StructuralError{Msg: "failed to read worksheet rows: " + err.Error()}
	}
	return rows, nil
}

// parseRows runs the shared pipeline over header + data rows: resolve
// columns once, then fold the classifier over the data rows, threading
// the current section as an explicit accumulator.
func parseRows(rows [][]string) (*ParseResult, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, &StructuralError{Msg: "file is empty"}
	}
	if len(rows) < 2 {
		return nil, &StructuralError{Msg: "file has no data rows beyond the header"}
	}

	headers := rows[0]
	cols, err := ResolveColumns(headers)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{TotalAmount: decimal.Zero}
	section := ""
	for i, row := range rows[1:] {
		rowIndex := i + 2 // 1-based file position, row 1 is the header
		result.Diagnostics.TotalRows++

		outcome, item, next := ClassifyRow(row, headers, cols, section, rowIndex)
		switch outcome {
		case OutcomeItem:
			result.Items = append(result.Items, item)
			result.TotalAmount = result.TotalAmount.Add(item.Amount)
			result.Diagnostics.ItemRows++
		case OutcomeSection:
			result.Sections = append(result.Sections, next)
			result.Diagnostics.SkippedRows++
		case OutcomeDiscard:
			result.Diagnostics.SkippedRows++
		}
		section = next
	}

	return result, nil
}

func dropBlankRows(rows [][]string) [][]string {
	kept := rows[:0]
	for _, row := range rows {
		if !isBlankRow(row) {
			kept = append(kept, row)
		}
	}
	return kept
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
