package profile

import (
	"strconv"
	"strings"

	"github.com/sells-group/dealmatch/internal/textnorm"
)

// Item is one labeled entry (an industry, a country) in canonical form.
type Item struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Same reports whether two items denote the same entry: by id when both
// carry one, otherwise by normalized name.
func (i Item) Same(o Item) bool {
	if i.ID > 0 && o.ID > 0 {
		return i.ID == o.ID
	}
	ni, no := textnorm.Normalize(i.Name), textnorm.Normalize(o.Name)
	return ni != "" && ni == no
}

// Items normalizes a loosely-typed value into a list of items. It accepts a
// delimited string, a list of strings, ids, or {id,name} objects, a single
// object, or a bare id.
func Items(v any) []Item {
	var out []Item
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, Item{Name: p})
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, Item{Name: s})
			}
		}
	case []any:
		for _, el := range t {
			out = append(out, Items(el)...)
		}
	case map[string]any:
		if it := itemFromMap(t); it.ID > 0 || it.Name != "" {
			out = append(out, it)
		}
	default:
		if f, ok := toFloat(t); ok && f > 0 {
			out = append(out, Item{ID: int64(f)})
		}
	}
	return out
}

// Names returns the non-empty item names.
func Names(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return names
}

func itemFromMap(m map[string]any) Item {
	var it Item
	if f, ok := toFloat(m["id"]); ok && f > 0 {
		it.ID = int64(f)
	}
	for _, key := range []string{"name", "label", "title", "value"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			it.Name = strings.TrimSpace(s)
			break
		}
	}
	return it
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
