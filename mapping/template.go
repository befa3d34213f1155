package mapping

import "strings"

// Render substitutes every {key} in the template with captures[key].
// Missing keys render as the empty string. Substitution is literal;
// there is no escaping and no nesting.
func Render(template string, captures map[string]string) string {
	if template == "" || !strings.Contains(template, "{") {
		return template
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		return captures[m[1:len(m)-1]]
	})
}
