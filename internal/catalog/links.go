package catalog

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultListingURL  = "https://www.shl.com/solutions/products/product-catalog/"
	DefaultBaseURL     = "https://www.shl.com"
	DefaultPathSegment = "/product-catalog/view/"

	catalogPrefix   = "/products/product-catalog"
	solutionsPrefix = "/solutions"
)

// DiscoverLinks returns the distinct product page URLs referenced by anchors
// in the listing document, normalized and sorted.
func DiscoverLinks(doc *goquery.Document, baseURL, segment string) []string {
	if segment == "" {
		segment = DefaultPathSegment
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(href, segment) {
			return
		}
		normalized, ok := NormalizeURL(href, baseURL)
		if !ok {
			return
		}
		seen[normalized] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)

	return links
}

// NormalizeURL makes href absolute against baseURL and inserts the /solutions
// prefix for catalog paths that lack it. Fragments are dropped.
func NormalizeURL(href, baseURL string) (string, bool) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""

	if strings.Contains(abs.Path, catalogPrefix) && !strings.Contains(abs.Path, solutionsPrefix+catalogPrefix) {
		abs.Path = strings.Replace(abs.Path, catalogPrefix, solutionsPrefix+catalogPrefix, 1)
		abs.RawPath = ""
	}

	return abs.String(), true
}
