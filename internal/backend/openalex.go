package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/segmentio/encoding/json"
)

// OpenAlex queries the OpenAlex Works API (§6: "/works?search="). Uncapped
// quota per §4.6 baselines. Author checking defaults off per
// Config.CheckOpenAlexAuthors (§6) — OpenAlex's author disambiguation is
// noisier than the other backends', so arbitration only weighs it when the
// caller opts in.
type OpenAlex struct {
	BaseURL             string
	APIKey              string
	checkAuthorsEnabled bool
}

func NewOpenAlex(apiKey string, checkAuthors bool) *OpenAlex {
	return &OpenAlex{BaseURL: "https://api.openalex.org", APIKey: apiKey, checkAuthorsEnabled: checkAuthors}
}

func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) AuthorCheckEnabled() bool { return o.checkAuthorsEnabled }

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	Title       string `json:"title"`
	DOI         string `json:"doi"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
}

func (o *OpenAlex) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("search", title)
	q.Set("per-page", "1")
	if o.APIKey != "" {
		q.Set("api_key", o.APIKey)
	}

	body, err := get(ctx, client, o.BaseURL+"/works?"+q.Encode(), nil)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed openAlexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: o.Name(), Err: err}
	}
	if len(parsed.Results) == 0 {
		return DbQueryResult{}, nil
	}

	work := parsed.Results[0]
	if work.Title == "" {
		return DbQueryResult{}, nil
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		authors = append(authors, a.Author.DisplayName)
	}

	foundTitle := work.Title
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	if work.DOI != "" {
		u := work.DOI
		result.URL = &u
	}
	return result, nil
}
