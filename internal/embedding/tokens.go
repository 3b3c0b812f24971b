package embedding

import (
	"strings"
	"unicode"
)

// Tokens lower-cases text and splits it into runs of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
