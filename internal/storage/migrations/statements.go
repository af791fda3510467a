package migrations

import (
	"errors"
	"strings"
)

// ErrQuotedSemicolon is returned for scripts the splitter would cut inside a
// string literal.
var ErrQuotedSemicolon = errors.New("semicolon inside string literal")

// Statements splits a script into single statements for drivers that reject
// multi-statement execs. Only "--" line comments are understood, and string
// literals must not contain semicolons.
func Statements(script string) ([]string, error) {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	body := b.String()
	if quotedSemicolon(body) {
		return nil, ErrQuotedSemicolon
	}

	var out []string
	for _, part := range strings.Split(body, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}

// quotedSemicolon reports a ';' between single quotes. Doubled quotes are escapes.
func quotedSemicolon(sql string) bool {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return true
			}
		}
	}
	return false
}
