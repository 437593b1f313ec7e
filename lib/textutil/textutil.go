package textutil

import (
	"regexp"
	"strings"
)

var (
	punctuationRegex = regexp.MustCompile(`[^\pL\pN\s]`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	// pack-size qualifiers like "30 rolls", "24 count, "12 pack", "10冊"
	packSizeRegex = regexp.MustCompile(`\d+\s*(pack|pk|count|ct|rolls?|sheets?|pcs?|個|枚|本|巻|ロール|冊)`)
)

// DefaultStopTerms are marketing and packaging tokens that carry no
// product identity and only hurt name matching.
var DefaultStopTerms = []string{
	"new", "improved", "premium", "value", "family", "bonus", "bulk",
	"size", "official", "genuine", "authentic", "set", "of",
	"pack", "pk", "count", "ct", "box", "bag", "bottle", "carton",
	"oz", "lb", "lbs", "ml", "kg", "g",
	"お得", "セット", "まとめ買い", "正規品", "送料無料",
}

// NormalizeName lower-cases a product name, strips punctuation and
// pack-size qualifiers, drops the given stop terms and collapses
// whitespace. The result is a canonical form for similarity scoring.
func NormalizeName(name string, stopTerms []string) string {
	name = strings.ToLower(name)
	name = punctuationRegex.ReplaceAllString(name, " ")
	name = packSizeRegex.ReplaceAllString(name, " ")

	tokens := whitespaceRegex.Split(strings.TrimSpace(name), -1)
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok == "" || isStopTerm(tok, stopTerms) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Tokens returns the set of tokens in a normalized name.
func Tokens(normalized string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Fields(normalized) {
		out[tok] = struct{}{}
	}
	return out
}

// JaccardTokens computes token-set overlap between two normalized names.
// Two empty sets count as zero overlap, not full overlap.
func JaccardTokens(a, b string) float64 {
	ta := Tokens(a)
	tb := Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func isStopTerm(tok string, stopTerms []string) bool {
	for _, s := range stopTerms {
		if tok == s {
			return true
		}
	}
	return false
}
