package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segmentio/encoding/json"
)

// CrossRef queries the CrossRef Works API (§4.3/§6:
// "/works?query.bibliographic="). Decoding uses segmentio/encoding/json
// rather than stdlib encoding/json, grounded on the teacher's own ckit
// server using it for hot-path JSON decode.
type CrossRef struct {
	BaseURL string // overridable for tests; defaults to the public API
	Mailto  string
}

// NewCrossRef constructs a CrossRef backend. mailto, if non-empty, is sent
// as a query parameter per CrossRef's "polite pool" convention and widens
// the rate-limiter baseline from 1/s to 3/s (§4.6).
func NewCrossRef(mailto string) *CrossRef {
	return &CrossRef{BaseURL: "https://api.crossref.org", Mailto: mailto}
}

func (c *CrossRef) Name() string { return "crossref" }

func (c *CrossRef) AuthorCheckEnabled() bool { return true }

type crossRefResponse struct {
	Message struct {
		Items []crossRefItem `json:"items"`
	} `json:"message"`
}

type crossRefItem struct {
	Title   []string `json:"title"`
	Authors []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	DOI string `json:"DOI"`
}

func (c *CrossRef) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("query.bibliographic", title)
	q.Set("rows", "1")
	if c.Mailto != "" {
		q.Set("mailto", c.Mailto)
	}

	body, err := get(ctx, client, c.BaseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed crossRefResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: c.Name(), Err: err}
	}
	if len(parsed.Message.Items) == 0 {
		return DbQueryResult{}, nil
	}

	item := parsed.Message.Items[0]
	if len(item.Title) == 0 {
		return DbQueryResult{}, nil
	}

	authors := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		name := a.Given + " " + a.Family
		authors = append(authors, name)
	}

	foundTitle := item.Title[0]
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	if item.DOI != "" {
		paperURL := "https://doi.org/" + item.DOI
		result.URL = &paperURL
	}
	return result, nil
}
