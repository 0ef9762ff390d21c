package boq

import "strings"

// Synonym sets for the five semantic columns. Matching is
// case-insensitive; order within a set does not matter but the exact
// pass always beats the fuzzy pass.
var (
	descriptionNames = []string{"description", "desc", "item description", "work description"}
	quantityNames    = []string{"quantity", "qty", "qty.", "amount", "qnt"}
	unitNames        = []string{"unit", "units", "uom", "unit of measure"}
	rateNames        = []string{"price", "rate", "unit price", "unit rate", "cost per unit"}
	totalNames       = []string{"total price", "total amount", "total", "amount", "total cost"}
)

// identifierHeaders are headers that label a row-ID column. The fuzzy
// pass must never read one of these as a description column.
var identifierHeaders = []string{"item no", "item number", "item#", "no", "number"}

// columnNotFound marks an unresolved column.
const columnNotFound = 0

// Columns holds the resolved 1-based positions of the semantic fields.
// Zero means "not present in this file".
type Columns struct {
	Description int
	Quantity    int
	Unit        int
	Rate        int
	Total       int
}

// ResolveColumns maps the header row to semantic column positions.
// Description, quantity and unit are required; a missing one is reported
// through a StructuralError naming the field.
func ResolveColumns(headers []string) (Columns, error) {
	cols := Columns{
		Description: findColumn(headers, descriptionNames),
		Quantity:    findColumn(headers, quantityNames),
		Unit:        findColumn(headers, unitNames),
		Rate:        findColumn(headers, rateNames),
		Total:       findColumn(headers, totalNames),
	}

	switch {
	case cols.Description == columnNotFound:
		return cols, &StructuralError{Msg: "missing required column: description"}
	case cols.Quantity == columnNotFound:
		return cols, &StructuralError{Msg: "missing required column: quantity"}
	case cols.Unit == columnNotFound:
		return cols, &StructuralError{Msg: "missing required column: unit"}
	}
	return cols, nil
}

// findColumn returns the 1-based index of the header matching one of the
// candidate names, or columnNotFound. Pass 1 demands an exact match so
// that a header equal to "quantity" wins over one merely containing it;
// pass 2 falls back to substring containment with exclusions for
// identifier columns.
func findColumn(headers []string, candidates []string) int {
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, cand := range candidates {
			if h == cand {
				return i + 1
			}
		}
	}

	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		if isIdentifierHeader(h) {
			continue
		}
		for _, cand := range candidates {
			if !strings.Contains(h, cand) {
				continue
			}
			// "item" inside "item no." style headers is the ID column,
			// not the description.
			if cand == "item" && (strings.Contains(h, "no") || strings.Contains(h, "number") || strings.Contains(h, "#")) {
				continue
			}
			return i + 1
		}
	}
	return columnNotFound
}

func isIdentifierHeader(h string) bool {
	h = strings.TrimRight(h, ".:")
	for _, id := range identifierHeaders {
		if h == id {
			return true
		}
	}
	return false
}
