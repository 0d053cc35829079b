package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ACLAnthology has no search API; it is scraped directly (§4.5 [FULL]),
// using github.com/PuerkitoBio/goquery the way N0tT1m-code-lupe-v2,
// rohmanhakim-docs-crawler, peer-db and danielledeleo-periwiki all scrape
// HTML listing pages as a data source in the corpus.
type ACLAnthology struct {
	BaseURL string
}

func NewACLAnthology() *ACLAnthology {
	return &ACLAnthology{BaseURL: "https://aclanthology.org"}
}

func (a *ACLAnthology) Name() string { return "aclanthology" }

// AuthorCheckEnabled is false: the search results page lists paper titles
// only, not structured author metadata, without a second page fetch per
// candidate — out of scope for a single-probe backend.
func (a *ACLAnthology) AuthorCheckEnabled() bool { return false }

func (a *ACLAnthology) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("q", title)

	body, err := get(ctx, client, a.BaseURL+"/search/?"+q.Encode(), map[string]string{"Accept": "text/html"})
	if err != nil {
		return DbQueryResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: a.Name(), Err: err}
	}

	var foundTitle, paperURL string
	doc.Find("td.d-sm-table-cell a.align-middle").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}
		foundTitle = text
		if href, ok := sel.Attr("href"); ok {
			paperURL = a.BaseURL + href
		}
		return false
	})

	if foundTitle == "" {
		return DbQueryResult{}, nil
	}

	result := DbQueryResult{FoundTitle: &foundTitle}
	if paperURL != "" {
		result.URL = &paperURL
	}
	return result, nil
}
