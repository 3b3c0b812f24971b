package extract

import (
	"strings"
	"unicode/utf8"
)

// decodePlain returns content as a string. Invalid UTF-8 sequences are
// replaced with U+FFFD; it never fails.
func decodePlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd"), nil
	}
	return string(content), nil
}
