package registry

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ErrNoResultLink is returned when a search results listing has no usable
// result link.
var ErrNoResultLink = eris.New("registry: no result link on listing page")

var searchResultsHeading = regexp.MustCompile(`Search Results`)

// IsResultsListing reports whether the page is a search results listing
// rather than a case detail page.
func IsResultsListing(page *Page) bool {
	if page == nil || page.Doc == nil {
		return false
	}
	found := false
	page.Doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if searchResultsHeading.MatchString(s.Text()) {
			found = true
			return false
		}
		return true
	})
	return found
}

// DisambiguationPolicy picks the detail link to follow from a results
// listing. The returned href may be relative to the search URL.
type DisambiguationPolicy func(page *Page) (string, error)

// SelectFirst follows the link in the first result row.
func SelectFirst(page *Page) (string, error) {
	if page == nil || page.Doc == nil {
		return "", ErrNoResultLink
	}
	href, ok := page.Doc.Find("td.view").First().Find("a[href]").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", ErrNoResultLink
	}
	return href, nil
}
