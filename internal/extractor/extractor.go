// Package extractor pulls structured listing fields out of free-form
// dossier text using ordered pattern matching. Patterns run from the most
// explicit labelled form down to the most permissive bare match; the first
// pattern that matches anywhere in the text wins.
package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"inmodossier/server/internal/models"
)

// patterns maps each tracked field to its candidate expressions, ordered
// by decreasing trust. An explicit "precio:" label outranks a bare
// currency-marked number that could belong to anything.
var patterns = map[string][]*regexp.Regexp{
	"precio": compileAll(
		`precio:\s*([\d\.,]+)\s*€`,
		`valor:\s*([\d\.,]+)\s*€`,
		`([\d\.,]+)\s*€`,
		`precio.?(\d{1,3}(?:\.\d{3})(?:,\d{2})?)`,
		`importe:\s*([\d\.,]+)`,
		`coste:\s*([\d\.,]+)`,
		`€\s*([\d\.,]+)`,
	),
	"habitaciones": compileAll(
		`(\d+)\s*hab`,
		`habitaciones:\s*(\d+)`,
		`dormitorios:\s*(\d+)`,
		`(\d+)\s*dorm`,
		`habitacion:\s*(\d+)`,
		`dormitorio:\s*(\d+)`,
	),
	"metros": compileAll(
		`(\d+(?:[.,]\d+)?)\s*m²`,
		`(\d+(?:[.,]\d+)?)\s*m2`,
		`superficie:\s*(\d+(?:[.,]\d+)?)`,
		`metros:\s*(\d+(?:[.,]\d+)?)`,
		`m²:\s*(\d+(?:[.,]\d+)?)`,
		`superficie.*?(\d+(?:[.,]\d+)?)`,
	),
	"zona": compileAll(
		`zona:\s*([^\n\r.,;]+)`,
		`ubicaci[oó]n:\s*([^\n\r.,;]+)`,
		`barrio:\s*([^\n\r.,;]+)`,
		`distrito:\s*([^\n\r.,;]+)`,
		`situad[ao]\s*en\s*([^\n\r.,;]+)`,
		`localizaci[oó]n:\s*([^\n\r.,;]+)`,
	),
	"estado": compileAll(
		`estado:\s*([^\n\r.,;]+)`,
		`conservaci[oó]n:\s*([^\n\r.,;]+)`,
		`calidad:\s*([^\n\r.,;]+)`,
		`(nuevo|seminuevo|reformado|a reformar|excelente|bueno|regular)`,
	),
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile(`(?im)` + expr)
	}
	return compiled
}

// numericFields are post-processed with separator translation after capture.
var numericFields = map[string]bool{"precio": true, "metros": true}

// Extract returns the raw captured value for one field, or
// models.NotFound when no pattern matches. For numeric fields the '.'
// grouping separators are removed and ',' becomes the decimal point, so
// the result parses with the standard library.
func Extract(text, field string) string {
	candidates, ok := patterns[field]
	if !ok {
		return models.NotFound
	}

	for _, re := range candidates {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		result := strings.TrimSpace(match[1])
		if numericFields[field] {
			result = strings.ReplaceAll(result, ".", "")
			result = strings.ReplaceAll(result, ",", ".")
		}
		return result
	}
	return models.NotFound
}

// ExtractAll runs every field's patterns over the text and renders the
// results into their canonical display form. Empty text is valid input
// and yields the NotFound sentinel for every field.
func ExtractAll(text string) models.Fields {
	return models.Fields{
		Price:     FormatPrice(Extract(text, "precio")),
		Rooms:     FormatRooms(Extract(text, "habitaciones")),
		Area:      FormatArea(Extract(text, "metros")),
		Zone:      Extract(text, "zona"),
		Condition: Extract(text, "estado"),
	}
}

// FormatPrice renders a raw numeric capture as a euro-prefixed amount
// with Spanish grouping ("€ 125.000,00"). A capture that does not parse
// keeps its raw form behind the currency prefix.
func FormatPrice(raw string) string {
	if raw == models.NotFound {
		return raw
	}
	// The capture already carries '.' as its decimal point, so plain
	// float parsing applies here, not the locale normalizer.
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "€ " + raw
	}
	return "€ " + groupAmount(value)
}

// FormatRooms suffixes the captured room count with its unit.
func FormatRooms(raw string) string {
	if raw == models.NotFound {
		return raw
	}
	return raw + " hab"
}

// FormatArea renders the captured surface as a whole number of square
// meters, falling back to the raw capture when it does not parse.
func FormatArea(raw string) string {
	if raw == models.NotFound {
		return raw
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw + " m²"
	}
	return fmt.Sprintf("%.0f m²", value)
}

// groupAmount formats a value with '.' thousands grouping and a ','
// decimal separator, two decimals.
func groupAmount(value float64) string {
	plain := fmt.Sprintf("%.2f", value)
	intPart := plain[:len(plain)-3]
	fracPart := plain[len(plain)-2:]

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}
	return grouped.String() + "," + fracPart
}
