// Package probes implements the secondary identifier and retraction
// lookups (§4.10): DOI resolution validity, arXiv ID validity, and
// retraction status. These are out-of-band verification calls, not part of
// the per-backend quota table, so they share the engine's HTTP client but
// not its rate limiters (§4.10 "these are not in the per-backend quota
// table").
package probes

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segmentio/encoding/json"

	"github.com/CristianCantoro/hallucinator/internal/backend"
)

// maxDOIRedirects bounds DOI-resolution redirect-following (§4.7 step 6:
// "follow up to 5 redirects").
const maxDOIRedirects = 5

// Prober issues the secondary lookups against configurable base URLs, so
// tests can point it at an httptest.Server instead of the real doi.org /
// CrossRef / arXiv hosts.
type Prober struct {
	DOIBaseURL      string // defaults to "https://doi.org"
	CrossRefBaseURL string // defaults to "https://api.crossref.org"
	Arxiv           *backend.Arxiv
}

// NewProber builds a Prober pointed at the real public endpoints.
func NewProber() *Prober {
	return &Prober{
		DOIBaseURL:      "https://doi.org",
		CrossRefBaseURL: "https://api.crossref.org",
		Arxiv:           backend.NewArxiv(),
	}
}

// DOIResult is the outcome of resolving a DOI (§3 doi_info).
type DOIResult struct {
	Valid bool
	Title *string
}

// ResolveDOI treats any HTTP 2xx/3xx at <DOIBaseURL>/<doi> as valid; a 404
// is invalid. Network errors leave Valid false without being treated as a
// checker-level failure (§4.10: "network errors leave valid = false and do
// not mark the result failed").
func (p *Prober) ResolveDOI(ctx context.Context, client *http.Client, doi string) DOIResult {
	redirectClient := &http.Client{
		Transport: client.Transport,
		Timeout:   client.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxDOIRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.DOIBaseURL+"/"+doi, nil)
	if err != nil {
		return DOIResult{Valid: false}
	}
	req.Header.Set("User-Agent", backend.UserAgent)

	resp, err := redirectClient.Do(req)
	if err != nil {
		return DOIResult{Valid: false}
	}
	defer resp.Body.Close()

	valid := resp.StatusCode >= 200 && resp.StatusCode < 400
	return DOIResult{Valid: valid}
}

// ArxivResult is the outcome of validating an arXiv identifier (§3
// arxiv_info).
type ArxivResult struct {
	Valid bool
	Title *string
}

// ResolveArxiv issues an id-query to the arXiv API for arxivID (§4.7 step 7).
func (p *Prober) ResolveArxiv(ctx context.Context, client *http.Client, arxivID string) ArxivResult {
	found, title, err := p.Arxiv.QueryByID(ctx, arxivID, client)
	if err != nil || !found {
		return ArxivResult{Valid: false}
	}
	return ArxivResult{Valid: true, Title: &title}
}

// RetractionResult is the outcome of the retraction check (§3
// retraction_info).
type RetractionResult struct {
	IsRetracted bool
	NoticeDOI   *string
	Source      *string
}

type crossRefRetractionResponse struct {
	Message struct {
		Items []struct {
			DOI string `json:"DOI"`
		} `json:"items"`
	} `json:"message"`
}

// CheckRetraction queries a CrossRef filter scoped to doi for
// retraction-notice records (§4.7 step 8, §4.10).
func (p *Prober) CheckRetraction(ctx context.Context, client *http.Client, doi string) RetractionResult {
	q := url.Values{}
	q.Set("filter", "doi:"+doi+",type:retraction")
	q.Set("rows", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.CrossRefBaseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return RetractionResult{}
	}
	req.Header.Set("User-Agent", backend.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return RetractionResult{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RetractionResult{}
	}

	var parsed crossRefRetractionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return RetractionResult{}
	}
	if len(parsed.Message.Items) == 0 {
		return RetractionResult{}
	}

	item := parsed.Message.Items[0]
	noticeDOI := item.DOI
	source := "crossref"
	return RetractionResult{IsRetracted: true, NoticeDOI: &noticeDOI, Source: &source}
}
