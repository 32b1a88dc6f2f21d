// Package template provides placeholder substitution for display strings
// and loading of the static scaffold documents that generated nodes are
// merged into.
package template

import "strings"

// Render substitutes {NAME} placeholders using the lookup function.
// Placeholders the lookup cannot resolve are left as literal text, so a
// half-configured remark template degrades visibly instead of failing the
// generation call.
func Render(tmpl string, lookup func(name string) (string, bool)) string {
	if !strings.ContainsRune(tmpl, '{') {
		return tmpl
	}

	var out strings.Builder
	out.Grow(len(tmpl))
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			out.WriteString(tmpl)
			return out.String()
		}
		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			out.WriteString(tmpl)
			return out.String()
		}
		close += open

		out.WriteString(tmpl[:open])
		name := tmpl[open+1 : close]
		if value, ok := lookup(name); ok {
			out.WriteString(value)
		} else {
			out.WriteString(tmpl[open : close+1])
		}
		tmpl = tmpl[close+1:]
	}
}
