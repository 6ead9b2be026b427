package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/profile"
)

var referenceCodeRe = regexp.MustCompile(`^([A-Z]{2})-([BS])-(\d{1,5})$`)

// ParseReferenceCode splits a code like "VN-S-12" into its country prefix,
// entity letter, and sequence.
func ParseReferenceCode(code string) (prefix, letter, seq string, ok bool) {
	m := referenceCodeRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(code)))
	if m == nil {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

func (v *Validator) validateReferenceCode(ctx context.Context, res *RowResult, kind profile.Kind) {
	raw := res.Data[KeyReferenceCode]
	if raw == "" {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(raw))
	res.Data[KeyReferenceCode] = code
	fail := func(msg string, suggestions ...string) {
		res.addError(FieldError{
			Field:       KeyReferenceCode,
			Label:       "Reference Code",
			Value:       code,
			Message:     msg,
			Suggestions: suggestions,
		})
	}

	prefix, letter, seq, ok := ParseReferenceCode(code)
	if !ok {
		fail(fmt.Sprintf("reference code %q must look like CC-%s-123 (country code, entity letter, 1-5 digits), e.g. VN-%s-1",
			code, kind.Letter(), kind.Letter()))
		return
	}

	if letter != kind.Letter() {
		fixed := fmt.Sprintf("%s-%s-%s", prefix, kind.Letter(), seq)
		fail(fmt.Sprintf("reference code %q uses %s but %s rows use %s; use %s", code, letter, kind, kind.Letter(), fixed), fixed)
		return
	}

	if origin, ok := v.snap.Get(catalog.Countries).Lookup(res.Data[KeyOriginCountry]); ok && !origin.Region && origin.Code != "" {
		if expected := strings.ToUpper(origin.Code); prefix != expected {
			fixed := fmt.Sprintf("%s-%s-%s", expected, letter, seq)
			owner := "no country"
			if o, found := v.snap.Get(catalog.Countries).ByCode(prefix); found {
				owner = o.Name
			}
			fail(fmt.Sprintf("prefix %s belongs to %s, but origin country %s expects %s; use %s",
				prefix, owner, origin.Name, expected, fixed), fixed)
			return
		}
	}

	if v.codes == nil {
		return
	}
	exists, err := v.codes.ReferenceCodeExists(ctx, kind, code)
	if err != nil {
		logCheckFailure(kind, code, err)
		return
	}
	if exists {
		fail(fmt.Sprintf("reference code %s already exists", code))
	}
}
