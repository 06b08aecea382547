package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ImageCandidate is one CDN <img> element on a product page.
type ImageCandidate struct {
	Src    string
	SrcSet string
}

var (
	fileBasePattern  = regexp.MustCompile(`([^/]+)(?:\.\w+)(?:\?.*)?$`)
	variantSuffix    = regexp.MustCompile(`(_\d+)?$`)
	resolutionTokens = []string{"828x828", "1080x1080"}
)

// ImageCandidates returns every CDN-hosted <img> on the page, in document order.
func ImageCandidates(page string) ([]ImageCandidate, error) {
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	nodes, err := htmlquery.QueryAll(doc, `//img[contains(@src, "pharmacity.io")]`)
	if err != nil {
		return nil, err
	}

	out := make([]ImageCandidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, candidateFrom(n))
	}
	return out, nil
}

func candidateFrom(n *html.Node) ImageCandidate {
	return ImageCandidate{
		Src:    strings.TrimSpace(htmlquery.SelectAttr(n, "src")),
		SrcSet: htmlquery.SelectAttr(n, "srcset"),
	}
}

// CandidateURLs keeps the images that carry sku. For each, the last srcset
// entry naming the sku comes first, then the plain src.
func CandidateURLs(sku string, cands []ImageCandidate) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, c := range cands {
		if !strings.Contains(c.Src, sku) && !strings.Contains(c.SrcSet, sku) {
			continue
		}
		if c.SrcSet != "" {
			var matching []string
			for _, entry := range strings.Split(c.SrcSet, ",") {
				fields := strings.Fields(entry)
				if len(fields) > 0 && strings.Contains(fields[0], sku) {
					matching = append(matching, fields[0])
				}
			}
			if len(matching) > 0 {
				add(matching[len(matching)-1])
			}
		}
		if strings.Contains(c.Src, sku) {
			add(c.Src)
		}
	}
	return urls
}

// SelectImages filters urls to those naming sku, prefers the highest known
// resolution, and keeps one URL per filename base (trailing _<digits> ignored).
func SelectImages(sku string, urls []string) []string {
	var filtered []string
	for _, u := range urls {
		if sku != "" && strings.Contains(u, sku) {
			filtered = append(filtered, u)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return resolutionRank(filtered[i]) > resolutionRank(filtered[j])
	})

	out := []string{}
	bases := make(map[string]bool)
	for _, u := range filtered {
		base := FileBase(u)
		if base == "" || bases[base] {
			continue
		}
		bases[base] = true
		out = append(out, u)
	}
	return out
}

// FileBase is the URL's filename without extension, query or variant suffix.
func FileBase(u string) string {
	m := fileBasePattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return variantSuffix.ReplaceAllString(m[1], "")
}

func resolutionRank(u string) int {
	for i := len(resolutionTokens) - 1; i >= 0; i-- {
		if strings.Contains(u, resolutionTokens[i]) {
			return i + 1
		}
	}
	return 0
}
