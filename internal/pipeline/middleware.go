package pipeline

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// SanitizeMiddleware strips markup from text fields, decodes entities and
// collapses whitespace.
type SanitizeMiddleware struct {
	policy *bluemonday.Policy
}

func NewSanitizeMiddleware() *SanitizeMiddleware {
	return &SanitizeMiddleware{policy: bluemonday.StrictPolicy()}
}

func (m *SanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *SanitizeMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	eachScalar(rec, m.clean)
	eachList(rec, func(list []string) []string {
		for i, s := range list {
			list[i] = m.clean(s)
		}
		return list
	})
	return rec, nil
}

func (m *SanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	// StrictPolicy escapes what it keeps, so unescape afterwards.
	cleaned := html.UnescapeString(m.policy.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// PriceMiddleware reads the amount and unit out of a displayed price such as
// "125.000 ₫/Hộp" into PriceValue (125000) and PriceUnit ("₫/Hộp"). Price
// keeps the scraped text; prices without digits set neither field.
type PriceMiddleware struct {
	digitsRe *regexp.Regexp
}

func NewPriceMiddleware() *PriceMiddleware {
	return &PriceMiddleware{digitsRe: regexp.MustCompile(`^\s*([0-9][0-9.,]*)\s*(.*)$`)}
}

func (m *PriceMiddleware) Name() string { return "price_normalize" }

func (m *PriceMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	match := m.digitsRe.FindStringSubmatch(rec.Price)
	if match == nil {
		return rec, nil
	}
	// Vietnamese prices use '.' and ',' as thousands separators only.
	numeric := strings.NewReplacer(".", "", ",", "").Replace(match[1])
	value, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return rec, nil
	}
	rec.PriceValue = value
	rec.PriceUnit = strings.TrimSpace(match[2])
	return rec, nil
}
