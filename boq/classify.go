package boq

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one parsed BOQ row that survived classification. It is
// transient parser output; the ingestion coordinator turns it into a
// phase record.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	Unit        string
	Rate        decimal.Decimal
	Amount      decimal.Decimal

	// Section is the most recent section header seen above this row,
	// empty when the file has no section rows.
	Section string

	// RowIndex is the 1-based position in the source file, kept for
	// diagnostics.
	RowIndex int

	// Raw preserves every original column value for the row, mapped or
	// not, for audit and debugging.
	Raw map[string]string
}

// RowOutcome tells what a row turned out to be.
type RowOutcome int

const (
	OutcomeItem RowOutcome = iota
	OutcomeSection
	OutcomeDiscard
)

// ClassifyRow applies the golden rule to one data row: a row is a
// billable item only when it has a description, a unit, and a strictly
// positive quantity. A described row failing that is a section header;
// its description becomes the new section context. Anything else is
// noise. There is no fourth outcome.
func ClassifyRow(row []string, headers []string, cols Columns, section string, rowIndex int) (RowOutcome, LineItem, string) {
	desc := strings.TrimSpace(cell(row, cols.Description))
	qtyStr := strings.TrimSpace(cell(row, cols.Quantity))
	unit := strings.TrimSpace(cell(row, cols.Unit))
	rateStr := strings.TrimSpace(cell(row, cols.Rate))
	totalStr := strings.TrimSpace(cell(row, cols.Total))

	if desc == "" {
		return OutcomeDiscard, LineItem{}, section
	}

	qty := Normalize(qtyStr)
	if qtyStr == "" || unit == "" || qty.IsZero() {
		// A described row with zero quantity cannot be billable work,
		// even when it carries a unit; treat it as a section header.
		return OutcomeSection, LineItem{}, desc
	}
	if qty.IsNegative() {
		return OutcomeDiscard, LineItem{}, section
	}

	rate := Normalize(rateStr)
	item := LineItem{
		Description: desc,
		Quantity:    qty,
		Unit:        unit,
		Rate:        rate,
		Amount:      rowAmount(qty, rate, totalStr),
		Section:     section,
		RowIndex:    rowIndex,
		Raw:         rawColumns(row, headers),
	}
	return OutcomeItem, item, section
}

// rowAmount computes the money value of a row: an explicit non-zero
// total column wins, otherwise quantity times rate.
func rowAmount(qty, rate decimal.Decimal, totalStr string) decimal.Decimal {
	if total := Normalize(totalStr); !total.IsZero() {
		return total
	}
	return qty.Mul(rate)
}

// cell returns the value at a resolved 1-based column, or "" when the
// column is unresolved or the row is short.
func cell(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return row[col-1]
}

func rawColumns(row []string, headers []string) map[string]string {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		raw[strings.TrimSpace(h)] = cell(row, i+1)
	}
	return raw
}
