// Package textnorm normalizes, tokenizes, and compares free-typed labels
// such as industry names, country names, and dropdown values.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)

	lower = cases.Lower(language.Und)

	dashReplacer = strings.NewReplacer(
		"–", "-", // en dash
		"—", "-", // em dash
		"‒", "-", // figure dash
		"−", "-", // minus sign
	)
)

// stopWords are dropped by Tokenize.
var stopWords = map[string]struct{}{
	"and": {}, "&": {}, "the": {}, "of": {}, "for": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "a": {}, "an": {},
}

// Normalize standardizes a label for comparison by:
//  1. Trimming and lowercasing (Unicode-aware)
//  2. Folding diacritics ("Café" -> "cafe")
//  3. Mapping "&" to "and"
//  4. Stripping everything outside [a-z0-9 ]
//  5. Collapsing whitespace
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = lower.String(s)
	s = foldDiacritics(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = multiSpaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// NormalizeDashes maps typographic dashes to an ASCII hyphen, so catalog
// labels like "25–49%" compare equal to typed "25-49%".
func NormalizeDashes(s string) string {
	return dashReplacer.Replace(s)
}

// Fold trims, lowercases, and dash-normalizes s. It keeps punctuation, which
// makes it the comparison key for exact and substring catalog lookups.
func Fold(s string) string {
	return strings.TrimSpace(lower.String(NormalizeDashes(s)))
}

// Tokenize normalizes s and splits it into words, dropping tokens shorter
// than two characters and stop words.
func Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TokenSignature returns the sorted tokens of s joined by single spaces.
// "Logistics & Transportation" and "Transportation Logistics" share a signature.
func TokenSignature(s string) string {
	tokens := Tokenize(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// PhoneticCode returns a coarse phonetic key for a single token (primary
// Double Metaphone code). Empty for tokens with no encodable letters.
func PhoneticCode(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(token)
	return primary
}

// PhoneticCodes returns the non-empty phonetic codes of the tokens of s.
func PhoneticCodes(s string) []string {
	tokens := Tokenize(s)
	codes := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if c := PhoneticCode(t); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}

// EditSimilarity returns 1 - levenshtein(a,b)/max(len(a),len(b)).
// Two empty strings are identical (1.0).
func EditSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(longest)
}

// Jaccard returns |A ∩ B| / |A ∪ B| over the distinct members of a and b.
// Both empty is 1.0; exactly one empty is 0.0.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	var inter int
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// foldDiacritics strips combining marks so accented Latin letters survive
// the [a-z0-9 ] filter as their base letter.
func foldDiacritics(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	if folded, _, err := transform.String(t, s); err == nil {
		return folded
	}
	return s
}
