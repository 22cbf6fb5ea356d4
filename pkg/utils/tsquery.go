package utils

import (
	"strings"
	"unicode"
)

// MinLookupTokenLength is the shortest token kept by BuildLookupTSQuery.
const MinLookupTokenLength = 3

// TokenizeSearchTerms lower-cases input and splits it on every rune that is
// not a letter or digit, so punctuation separates words and user input can
// never inject tsquery operators.
func TokenizeSearchTerms(input string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// BuildListingTSQuery builds a to_tsquery expression requiring every token of
// the input. It returns "" when no usable token remains.
func BuildListingTSQuery(input string) string {
	return strings.Join(TokenizeSearchTerms(input), " & ")
}

// BuildLookupTSQuery builds a prefix-matching to_tsquery expression for maker
// and category lookups: tokens of MinLookupTokenLength-1 runes or fewer are
// dropped, the rest become prefix terms chained with the followed-by operator.
func BuildLookupTSQuery(input string) string {
	var terms []string
	for _, token := range TokenizeSearchTerms(input) {
		if len([]rune(token)) < MinLookupTokenLength {
			continue
		}
		terms = append(terms, token+":*")
	}
	return strings.Join(terms, " <-> ")
}
