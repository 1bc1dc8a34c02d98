package server

import (
	"strings"
	"unicode"
)

// ParseCommand derives the command token from a raw input line: the first
// whitespace-delimited word, upper-cased. Line terminators never survive
// because they count as whitespace. Empty and blank lines yield "".
//
// Upper-casing is Unicode-aware, so invalid UTF-8 bytes in the token come
// back as U+FFFD. Handlers that need the exact bytes should parse the raw
// line, which is always passed through untouched.
func ParseCommand(line string) string {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		line = line[:i]
	}
	return strings.ToUpper(line)
}
