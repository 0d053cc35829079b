package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segmentio/encoding/json"
)

// SemanticScholar queries the Semantic Scholar Graph API's title search
// (§6). An API key changes the rate-limiter baseline from 10/s keyless to
// 1/s keyed — counterintuitively narrower, matching spec.md §4.6's stated
// baselines exactly (keyed traffic is metered per-key more strictly by the
// upstream service than the shared anonymous pool).
type SemanticScholar struct {
	BaseURL string
	APIKey  string
}

func NewSemanticScholar(apiKey string) *SemanticScholar {
	return &SemanticScholar{BaseURL: "https://api.semanticscholar.org", APIKey: apiKey}
}

func (s *SemanticScholar) Name() string { return "semanticscholar" }

func (s *SemanticScholar) AuthorCheckEnabled() bool { return true }

type s2Response struct {
	Data []s2Paper `json:"data"`
}

type s2Paper struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	URL string `json:"url"`
}

func (s *SemanticScholar) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("query", title)
	q.Set("limit", "1")
	q.Set("fields", "title,authors,url")

	headers := map[string]string{}
	if s.APIKey != "" {
		headers["x-api-key"] = s.APIKey
	}

	body, err := get(ctx, client, s.BaseURL+"/graph/v1/paper/search?"+q.Encode(), headers)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed s2Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: s.Name(), Err: err}
	}
	if len(parsed.Data) == 0 {
		return DbQueryResult{}, nil
	}

	paper := parsed.Data[0]
	authors := make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		authors = append(authors, a.Name)
	}

	foundTitle := paper.Title
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	if paper.URL != "" {
		u := paper.URL
		result.URL = &u
	}
	return result, nil
}
