package matching

import (
	"math"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/similarity"
	"github.com/sells-group/dealmatch/internal/textnorm"
)

// scoreIndustry compares the investor's preferred industries with the
// target's actual ones. Exact overlap is rewarded by Jaccard plus a bonus;
// otherwise the best fuzzy pairing wins.
func scoreIndustry(want, have []profile.Item) float64 {
	if len(want) == 0 {
		return neutral
	}
	if len(have) == 0 {
		return 0.3
	}

	if j := itemJaccard(want, have); j > 0 {
		return math.Min(1.0, j+0.2)
	}

	var best float64
	for _, h := range profile.Names(have) {
		for _, w := range profile.Names(want) {
			best = math.Max(best, industryPair(h, w))
		}
	}
	return clamp01(best)
}

// industryPair is the fuzzy similarity of a target label to one investor label.
func industryPair(targetLabel, investorLabel string) float64 {
	var best float64
	for _, s := range similarity.Suggest(targetLabel, []catalog.Option{{Name: investorLabel}}) {
		if s.Name == investorLabel {
			best = math.Max(best, float64(s.Score)/100)
		}
	}
	best = math.Max(best, textnorm.EditSimilarity(textnorm.Normalize(targetLabel), textnorm.Normalize(investorLabel)))
	return math.Max(best, similarity.Abbreviation(targetLabel, investorLabel))
}

// itemJaccard is the Jaccard index of two item lists under Item.Same, so
// ids decide whenever both sides carry one.
func itemJaccard(a, b []profile.Item) float64 {
	a, b = distinctItems(a), distinctItems(b)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for _, x := range a {
		for _, y := range b {
			if x.Same(y) {
				inter++
				break
			}
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func distinctItems(items []profile.Item) []profile.Item {
	out := make([]profile.Item, 0, len(items))
next:
	for _, it := range items {
		if it.ID <= 0 && textnorm.Normalize(it.Name) == "" {
			continue
		}
		for _, seen := range out {
			if seen.Same(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	return out
}

// scoreGeography checks the investor's target countries against the
// target's HQ (full credit) and operating countries (partial credit).
func scoreGeography(want, hq, operating []profile.Item) float64 {
	if len(want) == 0 {
		return neutral
	}
	if len(hq) == 0 && len(operating) == 0 {
		return 0.3
	}
	if anySame(want, hq) {
		return 1.0
	}
	if anySame(want, operating) {
		return 0.8
	}
	return 0
}

func anySame(a, b []profile.Item) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Same(y) {
				return true
			}
		}
	}
	return false
}
