package matching

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// Timeline buckets. Flexible matches anything.
const (
	bucketFlexible  = 0
	bucketImmediate = 1
	bucketShort     = 2
	bucketMedium    = 3
	bucketLong      = 4
)

// timelineLexicon is checked in order; the first keyword found wins.
var timelineLexicon = []struct {
	keyword string
	bucket  int
}{
	{"flexible", bucketFlexible},
	{"negotiable", bucketFlexible},
	{"open", bucketFlexible},
	{"any time", bucketFlexible},
	{"anytime", bucketFlexible},
	{"immediate", bucketImmediate},
	{"asap", bucketImmediate},
	{"urgent", bucketImmediate},
	{"short", bucketShort},
	{"medium", bucketMedium},
	{"mid", bucketMedium},
	{"long", bucketLong},
}

var monthsRe = regexp.MustCompile(`(\d+)\s*(month|year)`)

// timelineBucket maps free text to a bucket. ok is false for unknown text.
func timelineBucket(s string) (int, bool) {
	t := textnorm.Fold(s)
	for _, e := range timelineLexicon {
		if strings.Contains(t, e.keyword) {
			return e.bucket, true
		}
	}
	// "within 6 months", "2 years": bucket by the largest horizon mentioned.
	var months int
	for _, m := range monthsRe.FindAllStringSubmatch(t, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if m[2] == "year" {
			n *= 12
		}
		months = max(months, n)
	}
	switch {
	case months == 0:
		return 0, false
	case months <= 3:
		return bucketImmediate, true
	case months <= 6:
		return bucketShort, true
	case months <= 12:
		return bucketMedium, true
	default:
		return bucketLong, true
	}
}

// scoreTimeline compares the investor's and target's deal timelines.
func scoreTimeline(want, have string) float64 {
	if strings.TrimSpace(want) == "" || strings.TrimSpace(have) == "" {
		return neutral
	}
	if textnorm.Fold(want) == textnorm.Fold(have) {
		return 1.0
	}

	wb, wok := timelineBucket(want)
	hb, hok := timelineBucket(have)
	if (wok && wb == bucketFlexible) || (hok && hb == bucketFlexible) {
		return 0.8
	}
	if wok && hok {
		switch int(math.Abs(float64(wb - hb))) {
		case 0:
			return 1.0
		case 1:
			return 0.7
		case 2:
			return 0.4
		default:
			return 0.2
		}
	}
	return textnorm.EditSimilarity(textnorm.Normalize(want), textnorm.Normalize(have))
}
