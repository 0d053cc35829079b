package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"
)

// EuropePMC queries the Europe PMC REST search API (§6: "rest/search?query=").
type EuropePMC struct {
	BaseURL string
}

func NewEuropePMC() *EuropePMC {
	return &EuropePMC{BaseURL: "https://www.ebi.ac.uk/europepmc/webservices/rest"}
}

func (e *EuropePMC) Name() string { return "europepmc" }

func (e *EuropePMC) AuthorCheckEnabled() bool { return true }

type europePMCResponse struct {
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	Title      string `json:"title"`
	AuthorStr  string `json:"authorString"`
	DOI        string `json:"doi"`
	FullTextID string `json:"id"`
}

func (e *EuropePMC) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("query", "TITLE:\""+title+"\"")
	q.Set("format", "json")
	q.Set("pageSize", "1")

	body, err := get(ctx, client, e.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed europePMCResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: e.Name(), Err: err}
	}
	if len(parsed.ResultList.Result) == 0 {
		return DbQueryResult{}, nil
	}

	item := parsed.ResultList.Result[0]
	var authors []string
	if item.AuthorStr != "" {
		for _, a := range strings.Split(item.AuthorStr, ", ") {
			if a != "" {
				authors = append(authors, a)
			}
		}
	}

	foundTitle := item.Title
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	if item.DOI != "" {
		u := "https://doi.org/" + item.DOI
		result.URL = &u
	}
	return result, nil
}
