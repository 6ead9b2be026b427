package similarity

import (
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// AbbreviationScore is the similarity credited to an acronym or portmanteau.
const AbbreviationScore = 0.8

// stopWords mirrors the tokenizer's list; they carry no letters in acronyms.
var stopWords = map[string]bool{
	"and": true, "the": true, "of": true, "for": true, "in": true,
	"on": true, "at": true, "to": true, "a": true, "an": true,
}

// Abbreviation returns AbbreviationScore when one label abbreviates the
// other, either as an acronym ("IT" / "Information Technology") or as a
// portmanteau of word prefixes ("Fintech" / "Financial Technology"), else 0.
func Abbreviation(a, b string) float64 {
	if abbreviates(a, b) || abbreviates(b, a) {
		return AbbreviationScore
	}
	return 0
}

func abbreviates(short, long string) bool {
	compact := compactForm(short)
	words := contentWords(long)
	if len(compact) < 2 || len(words) == 0 {
		return false
	}
	if compact == strings.Join(words, "") {
		return false
	}
	return splitsInto(compact, words)
}

// compactForm joins the normalized words of s, keeping single letters
// ("F&B" -> "fb").
func compactForm(s string) string {
	return strings.Join(contentWords(s), "")
}

func contentWords(s string) []string {
	fields := strings.Fields(textnorm.Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}

// splitsInto reports whether s can be cut into len(words) non-empty pieces
// where piece i is a prefix of words[i].
func splitsInto(s string, words []string) bool {
	if len(words) == 0 {
		return s == ""
	}
	if s == "" {
		return false
	}
	w := words[0]
	for n := 1; n <= len(s) && n <= len(w); n++ {
		if s[n-1] != w[n-1] {
			break
		}
		if splitsInto(s[n:], words[1:]) {
			return true
		}
	}
	return false
}
