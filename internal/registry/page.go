package registry

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/guardianship-cli/internal/fetcher"
)

// Page is a fetched portal page: the final URL, the HTTP status and the
// parsed document.
type Page struct {
	URL        *url.URL
	StatusCode int
	Doc        *goquery.Document
}

// NewPage parses a fetched response into a Page.
func NewPage(resp *fetcher.Response) (*Page, error) {
	if resp == nil {
		return nil, eris.New("registry: nil response")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, eris.Wrap(err, "registry: parse html")
	}
	return &Page{URL: resp.URL, StatusCode: resp.StatusCode, Doc: doc}, nil
}

// ParsePage builds a Page from a status code and raw HTML.
func ParsePage(statusCode int, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "registry: parse html")
	}
	return &Page{StatusCode: statusCode, Doc: doc}, nil
}

// collapse joins the whitespace-separated words of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
