package matching

import (
	"strings"

	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/textnorm"
)

// scoreOwnership weighs the investor's stake preference against what the
// target is willing to give up.
func scoreOwnership(inv profile.Investor, tgt profile.Target) float64 {
	if inv.Negotiable {
		return 0.85
	}

	if tgt.MaxShareholding != nil {
		allowed := *tgt.MaxShareholding
		switch inv.Stake {
		case profile.StakeMajority:
			if allowed >= 50 {
				return 1.0
			}
			return 0.3
		case profile.StakeMinority:
			if allowed > 0 {
				return 1.0
			}
			return 0.1
		}
		if r := inv.AcquisitionPercent; r != nil {
			switch {
			case r.Max <= allowed:
				return 1.0
			case r.Min <= allowed:
				return 0.7
			default:
				return 0.3
			}
		}
	}

	want := strings.TrimSpace(inv.OwnershipText)
	have := strings.TrimSpace(tgt.InvestmentCondition)
	if want == "" || have == "" {
		return neutral
	}
	if textnorm.Fold(want) == textnorm.Fold(have) {
		return 1.0
	}
	return textnorm.EditSimilarity(textnorm.Normalize(want), textnorm.Normalize(have))
}
