package profile

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// Unbounded is the upper bound of an open-ended range ("100+").
const Unbounded = 1e15

// Range is a closed numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return o.Min >= r.Min && o.Max <= r.Max
}

// ContainsValue reports whether v lies within r.
func (r Range) ContainsValue(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Overlaps reports whether the two ranges intersect.
func (r Range) Overlaps(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// Gap is the distance between two disjoint ranges, 0 when they overlap.
func (r Range) Gap(o Range) float64 {
	switch {
	case o.Min > r.Max:
		return o.Min - r.Max
	case r.Min > o.Max:
		return r.Min - o.Max
	default:
		return 0
	}
}

// Span is the width of the smallest range covering both.
func (r Range) Span(o Range) float64 {
	return math.Max(r.Max, o.Max) - math.Min(r.Min, o.Min)
}

// Scale multiplies the lower and upper bounds by the given factors.
func (r Range) Scale(low, high float64) Range {
	out := Range{Min: r.Min * low, Max: r.Max}
	if r.Max < Unbounded {
		out.Max = r.Max * high
	}
	return out
}

// Mid is the midpoint, or Min for open-ended ranges.
func (r Range) Mid() float64 {
	if r.Max >= Unbounded {
		return r.Min
	}
	return (r.Min + r.Max) / 2
}

const numPattern = `(\d+(?:\.\d+)?)\s*(k|m|mn|mm|b|bn|million|billion|thousand)?`

var (
	betweenRe = regexp.MustCompile(`^` + numPattern + `\s*(?:-|to|~)\s*` + numPattern + `$`)
	plusRe    = regexp.MustCompile(`^` + numPattern + `\s*\+$`)
	belowRe   = regexp.MustCompile(`^(?:<=?|under|below|less than|up to|max)\s*` + numPattern + `$`)
	aboveRe   = regexp.MustCompile(`^(?:>=?|over|above|more than|at least|min)\s*` + numPattern + `$`)
	singleRe  = regexp.MustCompile(`^` + numPattern + `$`)

	amountNoise = strings.NewReplacer(
		"$", "", "€", "", "£", "", "¥", "", ",", "", "%", "",
		"usd", "", "sgd", "", "eur", "",
	)
)

// ParseRange coerces the range encodings found in profile documents into a
// Range. It accepts {min,max} objects, two-element arrays, bare numbers, and
// strings such as "50-200", "100+", "<100", "$1,000,000", or "5M".
//
// A bare number n becomes [0.5n, 1.5n]. A missing max defaults to min and a
// missing min defaults to 0. ok is false when no bound can be read.
func ParseRange(v any) (Range, bool) {
	switch t := v.(type) {
	case nil:
		return Range{}, false
	case Range:
		return t, true
	case *Range:
		if t == nil {
			return Range{}, false
		}
		return *t, true
	case map[string]any:
		lo, hasLo := toFloat(first(t, "min", "from", "low"))
		hi, hasHi := toFloat(first(t, "max", "to", "high"))
		return bounds(lo, hasLo, hi, hasHi)
	case []any:
		switch len(t) {
		case 1:
			return ParseRange(t[0])
		case 2:
			lo, hasLo := toFloat(t[0])
			hi, hasHi := toFloat(t[1])
			return bounds(lo, hasLo, hi, hasHi)
		}
		return Range{}, false
	case []float64:
		if len(t) == 2 {
			return bounds(t[0], true, t[1], true)
		}
		return Range{}, false
	case string:
		return parseRangeString(t)
	case bool:
		return Range{}, false
	default:
		if f, ok := toFloat(t); ok {
			return around(f), true
		}
		return Range{}, false
	}
}

func parseRangeString(s string) (Range, bool) {
	s = strings.TrimSpace(amountNoise.Replace(textnorm.Fold(s)))
	if s == "" {
		return Range{}, false
	}
	if m := betweenRe.FindStringSubmatch(s); m != nil {
		lo, _ := amount(m[1], m[2])
		hi, _ := amount(m[3], m[4])
		return bounds(lo, true, hi, true)
	}
	if m := plusRe.FindStringSubmatch(s); m != nil {
		lo, _ := amount(m[1], m[2])
		return Range{Min: lo, Max: Unbounded}, true
	}
	if m := aboveRe.FindStringSubmatch(s); m != nil {
		lo, _ := amount(m[1], m[2])
		return Range{Min: lo, Max: Unbounded}, true
	}
	if m := belowRe.FindStringSubmatch(s); m != nil {
		hi, _ := amount(m[1], m[2])
		return Range{Min: 0, Max: hi}, true
	}
	if m := singleRe.FindStringSubmatch(s); m != nil {
		n, _ := amount(m[1], m[2])
		return around(n), true
	}
	return Range{}, false
}

func bounds(lo float64, hasLo bool, hi float64, hasHi bool) (Range, bool) {
	switch {
	case hasLo && hasHi:
		if lo > hi {
			lo, hi = hi, lo
		}
		return Range{Min: lo, Max: hi}, true
	case hasLo:
		return Range{Min: lo, Max: lo}, true
	case hasHi:
		return Range{Min: 0, Max: hi}, true
	default:
		return Range{}, false
	}
}

func around(n float64) Range {
	n = math.Abs(n)
	return Range{Min: 0.5 * n, Max: 1.5 * n}
}

func amount(num, suffix string) (float64, bool) {
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch suffix {
	case "k", "thousand":
		f *= 1e3
	case "m", "mn", "mm", "million":
		f *= 1e6
	case "b", "bn", "billion":
		f *= 1e9
	}
	return f, true
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// toFloat reads a number from JSON numbers, Go numerics, or numeric text.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(amountNoise.Replace(strings.ToLower(t)))
		if m := singleRe.FindStringSubmatch(s); m != nil {
			return amount(m[1], m[2])
		}
		return 0, false
	default:
		return 0, false
	}
}
