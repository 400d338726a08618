package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify derives a document key from a classification label.
// "Transportes, serviços auxiliares" -> "transportes,_servicos_auxiliares".
//
// Only spaces are rewritten; punctuation is kept so keys stay stable for
// existing consumers. Labels differing only in accents or case collide.
func Slugify(label string) string {
	return strings.ReplaceAll(Fold(label), " ", "_")
}

// Fold lowercases a label and strips its diacritics.
func Fold(label string) string {
	s := norm.NFKD.String(label)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	return strings.ToLower(s)
}
