// Package similarity scores how closely an ad-hoc industry label matches
// the entries of a canonical industry catalog.
package similarity

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/textnorm"
)

// Defaults for Suggest.
const (
	MinScore   = 40
	MaxResults = 3
)

// Weights combines the four sub-scores. They sum to 1.0.
type Weights struct {
	Edit      float64 `json:"edit"`
	Token     float64 `json:"token"`
	Substring float64 `json:"substring"`
	Phonetic  float64 `json:"phonetic"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Edit: 0.30, Token: 0.35, Substring: 0.20, Phonetic: 0.15}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Edit + w.Token + w.Substring + w.Phonetic
}

// Suggestion is one ranked catalog entry.
type Suggestion struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Components holds the four sub-scores for one label pair, each in [0,1].
type Components struct {
	Edit      float64 `json:"edit"`
	Token     float64 `json:"token"`
	Substring float64 `json:"substring"`
	Phonetic  float64 `json:"phonetic"`
}

// Total combines components into a 0-100 score.
func (c Components) Total(w Weights) int {
	raw := 100 * (w.Edit*c.Edit + w.Token*c.Token + w.Substring*c.Substring + w.Phonetic*c.Phonetic)
	return int(math.Max(0, math.Min(100, math.Round(raw))))
}

// Suggest ranks catalog entries against name using the default weights.
// An entry whose normalized name equals the normalized input short-circuits
// to a single result scored 100.
func Suggest(name string, entries []catalog.Option) []Suggestion {
	return SuggestWith(name, entries, DefaultWeights(), MinScore, MaxResults)
}

// SuggestWith is Suggest with explicit weights, admission floor, and result cap.
func SuggestWith(name string, entries []catalog.Option, w Weights, minScore, limit int) []Suggestion {
	norm := textnorm.Normalize(name)
	if norm == "" {
		return []Suggestion{}
	}

	for _, e := range entries {
		if textnorm.Normalize(e.Name) == norm {
			return []Suggestion{{ID: e.ID, Name: e.Name, Score: 100}}
		}
	}

	var out []Suggestion
	for _, e := range entries {
		score := Breakdown(name, e.Name).Total(w)
		if score >= minScore {
			out = append(out, Suggestion{ID: e.ID, Name: e.Name, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

// SuggestBatch runs Suggest for every name against one shared catalog
// snapshot. Results are keyed by the input name.
func SuggestBatch(names []string, entries []catalog.Option) map[string][]Suggestion {
	out := make(map[string][]Suggestion, len(names))
	for _, n := range names {
		out[n] = Suggest(n, entries)
	}
	return out
}

// Breakdown computes the four sub-scores between labels a and b.
func Breakdown(a, b string) Components {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	return Components{
		Edit:      editScore(a, b, na, nb),
		Token:     textnorm.Jaccard(textnorm.Tokenize(a), textnorm.Tokenize(b)),
		Substring: substringScore(na, nb),
		Phonetic:  textnorm.Jaccard(textnorm.PhoneticCodes(a), textnorm.PhoneticCodes(b)),
	}
}

// editScore is the normalized edit similarity, taken on the better of the
// plain normalized strings and their sorted-token signatures.
func editScore(a, b, na, nb string) float64 {
	plain := textnorm.EditSimilarity(na, nb)
	sa, sb := textnorm.TokenSignature(a), textnorm.TokenSignature(b)
	if sa == "" || sb == "" {
		return plain
	}
	return math.Max(plain, textnorm.EditSimilarity(sa, sb))
}

// substringScore rewards full containment by length ratio, otherwise partial
// credit for the shorter label's 3+ character tokens found in the longer one.
func substringScore(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}

	tokens := textnorm.Tokenize(shorter)
	if len(tokens) == 0 {
		return 0
	}
	var found int
	for _, t := range tokens {
		if len(t) >= 3 && strings.Contains(longer, t) {
			found++
		}
	}
	return 0.8 * float64(found) / float64(len(tokens))
}
