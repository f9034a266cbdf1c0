// internal/rules/template.go
package rules

import (
	"regexp"

	"github.com/solatis/listingkeeper/internal/types"
)

// placeholderPattern matches {{identifier}} with word characters only.
// Dotted identifiers are not placeholders and stay literal.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{field}} placeholders with the text form of the
// record's top-level fields. Placeholders naming a missing field are left
// as literal text so broken templates show up in audit snapshots.
func Render(template string, record types.Record) string {
	if len(template) > types.MaxTemplateLength {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[2 : len(token)-2]
		v, ok := record[name]
		if !ok {
			return token
		}
		return toText(v)
	})
}
