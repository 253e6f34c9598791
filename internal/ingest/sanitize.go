package ingest

import "strings"

// SanitizeUTF8 makes extracted text safe for JSON transport and SQLite
// storage: invalid UTF-8 sequences are replaced and control characters other
// than tab, newline, and carriage return are dropped. NUL bytes in
// particular corrupt SQLite TEXT columns.
func SanitizeUTF8(s string) string {
	s = strings.ToValidUTF8(s, "�")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
