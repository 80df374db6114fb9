package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// editionNoise lists suffix markers that describe packaging rather than
// identity and are stripped before comparison.
var editionNoise = []string{
	"feat.", "ft.", "featuring",
	"ep", "single", "lp",
	"remaster", "remastered",
	"deluxe", "deluxe edition", "expanded edition", "bonus track version",
}

// Normalize folds diacritics and case, strips punctuation and edition
// noise, and collapses whitespace so that cosmetic differences do not
// affect comparison.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '\'':
			// Dropped outright so "R.E.M." and "REM" compare equal.
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	tokens = stripNoiseSuffix(tokens)
	return strings.Join(tokens, " ")
}

// stripNoiseSuffix removes trailing edition markers, longest match first.
func stripNoiseSuffix(tokens []string) []string {
	for changed := true; changed && len(tokens) > 1; {
		changed = false
		for _, noise := range editionNoise {
			noiseTokens := strings.Fields(strings.ReplaceAll(noise, ".", ""))
			n := len(noiseTokens)
			if n == 0 || len(tokens) <= n {
				continue
			}
			tail := tokens[len(tokens)-n:]
			match := true
			for i, tok := range tail {
				if strings.TrimSuffix(tok, ".") != noiseTokens[i] {
					match = false
					break
				}
			}
			if match {
				tokens = tokens[:len(tokens)-n]
				changed = true
				break
			}
		}
	}
	return tokens
}

// NormalizeTuple produces the comparison key for a release.
func NormalizeTuple(artist, title, format string, year int) (string, string, string, int) {
	return Normalize(artist), Normalize(title), Normalize(format), year
}
