package boq

import "strings"

// FieldExtractor pulls one conceptual field out of a row's raw column
// map, trying a prioritized list of key spellings. Different upstream
// producers label the same column differently; keeping the precedence in
// data makes it testable instead of buried in conditionals.
type FieldExtractor struct {
	Keys []string
}

// Extract returns the first non-empty value among the extractor's keys,
// matching keys case-insensitively. The boolean reports whether any key
// produced a value.
func (e FieldExtractor) Extract(raw map[string]string) (string, bool) {
	for _, key := range e.Keys {
		for k, v := range raw {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				if value := strings.TrimSpace(v); value != "" {
					return value, true
				}
			}
		}
	}
	return "", false
}

// Extractors for the fields phase synthesis reads back out of raw rows.
var (
	DescriptionField = FieldExtractor{Keys: descriptionNames}
	QuantityField    = FieldExtractor{Keys: quantityNames}
	UnitField        = FieldExtractor{Keys: unitNames}
	RateField        = FieldExtractor{Keys: rateNames}
	TotalField       = FieldExtractor{Keys: totalNames}
)
