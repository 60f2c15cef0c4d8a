package view

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gartstein/directory/internal/company/query"
	"github.com/gartstein/directory/internal/company/schema"
)

// Label is the display name of a field, e.g. "Company Name".
func Label(field string) string {
	// Casers keep state between calls.
	title := cases.Title(language.English)
	if r, ok := schema.RuleFor(field); ok {
		return title.String(r.Label)
	}
	return title.String(splitCamel(field))
}

// splitCamel turns "foundedYear" into "founded year".
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Cycle returns the option after current; "" (no choice) sits before the
// first option.
func Cycle(options []string, current string) string {
	i := slices.Index(options, current)
	if i == len(options)-1 {
		return ""
	}
	return options[i+1]
}

// NextSort steps through the sortable fields.
func NextSort(current string) string {
	i := slices.Index(query.SortFields, current)
	return query.SortFields[(i+1)%len(query.SortFields)]
}

// ToggleOrder flips between ascending and descending.
func ToggleOrder(order string) string {
	if order == query.OrderDesc {
		return query.OrderAsc
	}
	return query.OrderDesc
}
