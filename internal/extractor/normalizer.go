package extractor

import (
	"strconv"
	"strings"
)

// unit and currency tokens stripped before numeric parsing
var tokenCleaner = strings.NewReplacer("€", "", "hab", "", "m²", "", "m2", "")

// ParseNumber converts locale-formatted numeric text into a float64.
// It strips currency and unit tokens, drops '.' grouping separators and
// treats ',' as the decimal separator. Empty or unparseable input yields
// 0, which callers must treat as "absent": no tracked field is
// legitimately zero. ParseNumber never fails.
func ParseNumber(text string) float64 {
	cleaned := tokenCleaner.Replace(text)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}
