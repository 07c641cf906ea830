package normalizer

import "strings"

var accents = map[rune]rune{
	'Á': 'A', 'É': 'E', 'Í': 'I', 'Ó': 'O', 'Ú': 'U', 'Ü': 'U', 'Ñ': 'N', 'Ç': 'C',
	'á': 'A', 'é': 'E', 'í': 'I', 'ó': 'O', 'ú': 'U', 'ü': 'U', 'ñ': 'N', 'ç': 'C',
}

// Norm canonicalizes client, product and route names so every matcher
// compares the same form: uppercase, Spanish accents folded, anything
// outside [A-Z0-9 ] dropped, whitespace runs collapsed, trimmed.
func Norm(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if mapped, ok := accents[r]; ok {
			r = mapped
		} else if r >= 'a' && r <= 'z' {
			r = r - 'a' + 'A'
		}
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pendingSpace = true
		}
	}
	return b.String()
}
