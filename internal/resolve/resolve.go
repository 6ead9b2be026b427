// Package resolve matches free-typed values against a catalog's display
// names using a cascade of exact, alias, substring, and edit-distance passes.
package resolve

import (
	"sort"
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// MaxSuggestions caps the suggestion list returned with every result.
const MaxSuggestions = 3

// Strategy names the pass that produced a match.
type Strategy string

// Resolution strategies, in cascade order.
const (
	StrategyNone      Strategy = ""
	StrategyExact     Strategy = "exact"
	StrategyAlias     Strategy = "alias"
	StrategySubstring Strategy = "substring"
)

// Result is the outcome of resolving one value.
type Result struct {
	// Matched is the canonical option text, empty when nothing matched.
	Matched  string   `json:"matched,omitempty"`
	Strategy Strategy `json:"strategy,omitempty"`
	// Confidence is 100 for exact matches, 0 when unmatched.
	Confidence int `json:"confidence"`
	// NearMatch is set when the closest option is within the edit-distance
	// tolerance. It is reported, never auto-accepted.
	NearMatch bool `json:"near_match,omitempty"`
	Distance  int  `json:"distance,omitempty"`
	// Suggestions are the closest options by edit distance, best first.
	Suggestions []string `json:"suggestions"`
}

// OK reports whether the value resolved to an option.
func (r Result) OK() bool {
	return r.Matched != ""
}

// Resolver resolves values against option lists. It is read-only after
// construction and safe for concurrent use.
type Resolver struct {
	aliases map[string]string
}

// New creates a Resolver with the given alias table (informal lowercase
// name -> canonical display name).
func New(aliases map[string]string) *Resolver {
	a := make(map[string]string, len(aliases))
	for k, v := range aliases {
		a[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Resolver{aliases: a}
}

// Resolve matches input against options:
//  1. Exact, case-insensitive and dash-normalized (confidence 100)
//  2. Alias table, only when the alias target is itself one of the options
//  3. Substring containment in either direction
//  4. Nearest edit distance, flagged as a near-match when within tolerance
//
// Suggestions (top 3 by edit distance) are always computed.
func (r *Resolver) Resolve(input string, options []string) Result {
	res := Result{Suggestions: []string{}}

	key := textnorm.Fold(input)
	if key == "" {
		return res
	}

	folded := make([]string, len(options))
	for i, o := range options {
		folded[i] = textnorm.Fold(o)
	}

	// Distances use the fully normalized forms so punctuation and "&" do
	// not count as edits.
	norm := textnorm.Normalize(input)
	normalized := make([]string, len(options))
	for i, o := range options {
		normalized[i] = textnorm.Normalize(o)
	}
	if norm != "" {
		res.Suggestions = suggest(norm, options, normalized)
	}

	if i := exactIndex(key, folded); i >= 0 {
		res.Matched = options[i]
		res.Strategy = StrategyExact
		res.Confidence = 100
		return res
	}

	if target, ok := r.aliases[strings.ToLower(strings.TrimSpace(input))]; ok {
		if i := exactIndex(textnorm.Fold(target), folded); i >= 0 {
			res.Matched = options[i]
			res.Strategy = StrategyAlias
			return res
		}
	}

	for i, f := range folded {
		if f == "" {
			continue
		}
		if strings.Contains(key, f) || strings.Contains(f, key) {
			res.Matched = options[i]
			res.Strategy = StrategySubstring
			return res
		}
	}

	best, dist := nearest(norm, normalized)
	if norm != "" && best >= 0 && dist <= tolerance(norm) {
		res.NearMatch = true
		res.Distance = dist
	}

	return res
}

// tolerance is the largest edit distance still treated as a near-match.
func tolerance(key string) int {
	return max(3, int(0.4*float64(len([]rune(key)))))
}

func exactIndex(key string, folded []string) int {
	for i, f := range folded {
		if f != "" && f == key {
			return i
		}
	}
	return -1
}

func nearest(key string, normalized []string) (int, int) {
	best, bestDist := -1, 0
	for i, f := range normalized {
		if f == "" {
			continue
		}
		d := textnorm.Levenshtein(key, f)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// suggest returns up to MaxSuggestions options ordered by ascending edit
// distance; ties keep catalog order.
func suggest(key string, options, normalized []string) []string {
	type candidate struct {
		index int
		dist  int
	}
	cands := make([]candidate, 0, len(options))
	for i, f := range normalized {
		if f == "" {
			continue
		}
		cands = append(cands, candidate{index: i, dist: textnorm.Levenshtein(key, f)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].dist < cands[j].dist
	})

	n := min(MaxSuggestions, len(cands))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = options[cands[i].index]
	}
	return out
}
