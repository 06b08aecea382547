// Package parser extracts product records from rendered product pages.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Selectors for the product page layout.
const (
	SelName        = "h1.line-clamp-3"
	SelPrice       = `div[class*="text-xl"][class*="font-bold"][class*="text-primary-500"]`
	SelSKU         = "p.text-sm.leading-5.text-neutral-600"
	SelBrand       = "a.text-sm.leading-5.text-primary-500"
	SelDetails     = `div[id^="radix-"]`
	SelDescription = "#mo-ta"
	SelIngredients = "#thanh-phan"
	SelIndications = "#chi-dinh"
	SelDirections  = "#huong-dan-su-dung"
	SelWarnings    = "#than-trong"
)

const brandPrefix = "Thương hiệu: "

var skuPattern = regexp.MustCompile(`(?i)(P\d+)`)

// ParseProduct extracts a record from rendered page HTML. The returned record is
// never nil: fields the page does not expose keep the types.NotFound sentinel.
func ParseProduct(slug, html string) (*types.ProductRecord, error) {
	rec := types.NewProductRecord(slug)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return rec, &types.ParseError{URL: slug, Err: err}
	}

	rec.Name = firstText(doc.Selection, SelName)
	rec.Price = firstText(doc.Selection, SelPrice)
	rec.SKU = firstText(doc.Selection, SelSKU)
	if brand := doc.Find(SelBrand).First(); brand.Length() > 0 {
		rec.Brand = orNotFound(strings.TrimSpace(strings.Replace(brand.Text(), brandPrefix, "", 1)))
	}

	if sku := ProductSKU(rec.SKU); sku != "" {
		cands, err := ImageCandidates(html)
		if err == nil {
			rec.Images = SelectImages(sku, CandidateURLs(sku, cands))
		}
	}

	details := doc.Find(SelDetails).First()
	if details.Length() == 0 {
		return rec, nil
	}

	rec.Description = firstText(details.Find(SelDescription), "p")
	rec.Ingredients = listItems(details.Find(SelIngredients))
	rec.Usage = listItems(details.Find(SelIndications))

	directions := details.Find(SelDirections)
	rec.UsageInstructions = listItems(directions)
	rec.UsageMethod = types.NotFound
	directions.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if strings.Contains(p.Text(), "Dùng") {
			rec.UsageMethod = strings.TrimSpace(p.Text())
			return false
		}
		return true
	})

	parseWarnings(details.Find(SelWarnings).First(), rec)
	return rec, nil
}

// parseWarnings walks each h2/h3 heading and reads the first list that follows it.
func parseWarnings(section *goquery.Selection, rec *types.ProductRecord) {
	if section.Length() == 0 {
		return
	}
	section.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		items := listItems(heading.NextAllFiltered("ul").First())
		title := heading.Text()
		switch {
		case strings.Contains(title, "Tác dụng phụ"):
			rec.SideEffects = items
		case strings.Contains(title, "Chống chỉ định"):
			rec.Contraindications = items
		case strings.Contains(title, "Thận trọng"):
			rec.Precautions = items
		}
	})
}

// ProductSKU pulls the "P<digits>" product code out of the SKU label.
func ProductSKU(label string) string {
	m := skuPattern.FindStringSubmatch(label)
	if m == nil {
		return ""
	}
	return m[1]
}

func firstText(scope *goquery.Selection, selector string) string {
	sel := scope.Find(selector).First()
	if sel.Length() == 0 {
		return types.NotFound
	}
	return orNotFound(strings.TrimSpace(sel.Text()))
}

func listItems(scope *goquery.Selection) []string {
	items := []string{}
	scope.Find("li").Each(func(_ int, li *goquery.Selection) {
		items = append(items, strings.TrimSpace(li.Text()))
	})
	return items
}

func orNotFound(s string) string {
	if s == "" {
		return types.NotFound
	}
	return s
}
