package record

import (
	"regexp"
	"strings"
)

var templateToken = regexp.MustCompile(`<<[^<>]+>>`)

// FillTemplate substitutes every <<column title>> token in template with the
// row's value for that column. Tokens naming absent columns substitute to the
// empty string.
func (t *Table) FillTemplate(template string, row []string) string {
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		title := strings.Trim(token, "<>")
		idx := t.ColumnIndex(title)[0]
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return row[idx]
	})
}
