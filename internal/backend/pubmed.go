package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segmentio/encoding/json"
)

// PubMed queries the NCBI ESearch+ESummary pair (§6). ESearch resolves a
// title query to a PMID, and ESummary fetches the document summary for
// that PMID — PubMed has no combined title-search-with-metadata endpoint.
type PubMed struct {
	BaseURL string
}

func NewPubMed() *PubMed {
	return &PubMed{BaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"}
}

func (p *PubMed) Name() string { return "pubmed" }

func (p *PubMed) AuthorCheckEnabled() bool { return true }

type pubmedESearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedDocSummary struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	DOI string `json:"elocationid"`
}

func (p *PubMed) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	pmid, err := p.esearch(ctx, title, client)
	if err != nil {
		return DbQueryResult{}, err
	}
	if pmid == "" {
		return DbQueryResult{}, nil
	}

	return p.esummary(ctx, pmid, client)
}

func (p *PubMed) esearch(ctx context.Context, title string, client *http.Client) (string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", title+"[Title]")
	q.Set("retmode", "json")
	q.Set("retmax", "1")

	body, err := get(ctx, client, p.BaseURL+"/esearch.fcgi?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	var parsed pubmedESearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &MalformedResponseError{Backend: p.Name(), Err: err}
	}
	if len(parsed.ESearchResult.IDList) == 0 {
		return "", nil
	}
	return parsed.ESearchResult.IDList[0], nil
}

func (p *PubMed) esummary(ctx context.Context, pmid string, client *http.Client) (DbQueryResult, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("retmode", "json")

	body, err := get(ctx, client, p.BaseURL+"/esummary.fcgi?"+q.Encode(), nil)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed pubmedESummaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: p.Name(), Err: err}
	}

	raw, ok := parsed.Result[pmid]
	if !ok {
		return DbQueryResult{}, nil
	}
	var doc pubmedDocSummary
	if err := json.Unmarshal(raw, &doc); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: p.Name(), Err: err}
	}
	if doc.Title == "" {
		return DbQueryResult{}, nil
	}

	authors := make([]string, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		authors = append(authors, a.Name)
	}

	foundTitle := doc.Title
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	u := "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	result.URL = &u
	return result, nil
}
