package dedupe

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ratio is a normalized Levenshtein similarity in [0, 1].
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	distance := levenshtein.ComputeDistance(a, b)
	if distance >= longest {
		return 0
	}
	return 1 - float64(distance)/float64(longest)
}

// tokenSetSimilarity compares two normalized strings as token sets, so
// word order and repeated words do not depress the score.
func tokenSetSimilarity(a, b string) float64 {
	tokensA := uniqueSorted(strings.Fields(a))
	tokensB := uniqueSorted(strings.Fields(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		if len(tokensA) == len(tokensB) {
			return 1
		}
		return 0
	}

	setB := make(map[string]struct{}, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = struct{}{}
	}
	var shared, onlyA []string
	for _, tok := range tokensA {
		if _, ok := setB[tok]; ok {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	sharedSet := make(map[string]struct{}, len(shared))
	for _, tok := range shared {
		sharedSet[tok] = struct{}{}
	}
	var onlyB []string
	for _, tok := range tokensB {
		if _, ok := sharedSet[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}

	base := strings.Join(shared, " ")
	left := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	right := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := ratio(left, right)
	if base != "" {
		if r := ratio(base, left); r > best {
			best = r
		}
		if r := ratio(base, right); r > best {
			best = r
		}
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
