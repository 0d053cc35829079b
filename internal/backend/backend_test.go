package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossRefQueryFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"message":{"items":[{"title":["Attention Is All You Need"],"author":[{"given":"Ashish","family":"Vaswani"}],"DOI":"10.48550/arXiv.1706.03762"}]}}`))
	}))
	defer srv.Close()

	c := &CrossRef{BaseURL: srv.URL}
	result, err := c.Query(context.Background(), "Attention Is All You Need", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, "Attention Is All You Need", *result.FoundTitle)
	assert.Contains(t, result.Authors, "Ashish Vaswani")
	assert.Equal(t, "https://doi.org/10.48550/arXiv.1706.03762", *result.URL)
}

func TestCrossRefQueryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"items":[]}}`))
	}))
	defer srv.Close()

	c := &CrossRef{BaseURL: srv.URL}
	result, err := c.Query(context.Background(), "Nonexistent Paper", srv.Client())
	require.NoError(t, err)
	assert.False(t, result.Found())
}

func TestCrossRefQueryRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &CrossRef{BaseURL: srv.URL}
	_, err := c.Query(context.Background(), "Some Title", srv.Client())
	require.Error(t, err)

	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	require.NotNil(t, rle.RetryAfter)
	assert.Equal(t, 2*time.Second, *rle.RetryAfter)
}

func TestCrossRefQueryMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := &CrossRef{BaseURL: srv.URL}
	_, err := c.Query(context.Background(), "Some Title", srv.Client())
	require.Error(t, err)

	var mre *MalformedResponseError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, "crossref", mre.Backend)
}

func TestArxivQueryFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
			<entry>
				<title>Attention Is All You Need</title>
				<id>http://arxiv.org/abs/1706.03762</id>
				<author><name>Ashish Vaswani</name></author>
			</entry>
		</feed>`))
	}))
	defer srv.Close()

	a := &Arxiv{BaseURL: srv.URL}
	result, err := a.Query(context.Background(), "Attention Is All You Need", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, "Attention Is All You Need", *result.FoundTitle)
	assert.Equal(t, []string{"Ashish Vaswani"}, result.Authors)
}

func TestArxivQueryByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "id_list=1706.03762")
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
			<entry><title>Attention Is All You Need</title><id>http://arxiv.org/abs/1706.03762</id></entry>
		</feed>`))
	}))
	defer srv.Close()

	a := &Arxiv{BaseURL: srv.URL}
	found, title, err := a.QueryByID(context.Background(), "1706.03762", srv.Client())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Attention Is All You Need", title)
}

func TestDBLPOnlineDecodesSingleAndMultipleAuthors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"hits":{"hit":[{"info":{"title":"A Paper","authors":{"author":[{"text":"A"},{"text":"B"}]},"url":"https://dblp.org/rec/x"}}]}}}`))
	}))
	defer srv.Close()

	d := &DBLPOnline{BaseURL: srv.URL}
	result, err := d.Query(context.Background(), "A Paper", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, []string{"A", "B"}, result.Authors)
}

func TestDBLPOnlineNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"hits":{}}}`))
	}))
	defer srv.Close()

	d := &DBLPOnline{BaseURL: srv.URL}
	result, err := d.Query(context.Background(), "Nope", srv.Client())
	require.NoError(t, err)
	assert.False(t, result.Found())
}

func TestSemanticScholarSendsAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"data":[{"title":"T","authors":[{"name":"X"}],"url":"https://s2.org/p"}]}`))
	}))
	defer srv.Close()

	s := NewSemanticScholar("secret")
	s.BaseURL = srv.URL
	result, err := s.Query(context.Background(), "T", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
}

func TestEuropePMCSplitsAuthorString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultList":{"result":[{"title":"T","authorString":"Smith J, Doe A","doi":"10.1/x"}]}}`))
	}))
	defer srv.Close()

	e := &EuropePMC{BaseURL: srv.URL}
	result, err := e.Query(context.Background(), "T", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith J", "Doe A"}, result.Authors)
}

func TestPubMedEsearchThenEsummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/esearch.fcgi" {
			w.Write([]byte(`{"esearchresult":{"idlist":["123"]}}`))
			return
		}
		w.Write([]byte(`{"result":{"123":{"title":"T","authors":[{"name":"X"}]}}}`))
	}))
	defer srv.Close()

	p := &PubMed{BaseURL: srv.URL}
	result, err := p.Query(context.Background(), "T", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/123/", *result.URL)
}

func TestOpenAlexAuthorCheckDisabledByDefault(t *testing.T) {
	o := NewOpenAlex("", false)
	assert.False(t, o.AuthorCheckEnabled())

	o2 := NewOpenAlex("", true)
	assert.True(t, o2.AuthorCheckEnabled())
}

func TestACLAnthologyScrapesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table><tr><td class="d-sm-table-cell">
			<a class="align-middle" href="/2023.acl-long.1/">A Great Paper</a>
		</td></tr></table></body></html>`))
	}))
	defer srv.Close()

	a := &ACLAnthology{BaseURL: srv.URL}
	result, err := a.Query(context.Background(), "A Great Paper", srv.Client())
	require.NoError(t, err)
	require.True(t, result.Found())
	assert.Equal(t, "A Great Paper", *result.FoundTitle)
	assert.Equal(t, srv.URL+"/2023.acl-long.1/", *result.URL)
}

type stubBackend struct{ name string }

func (s stubBackend) Name() string { return s.name }
func (s stubBackend) Query(context.Context, string, *http.Client) (DbQueryResult, error) {
	return DbQueryResult{}, nil
}
func (s stubBackend) AuthorCheckEnabled() bool { return true }

func TestRegistryOrdersByFixedPriorityAndRespectsDisabled(t *testing.T) {
	all := []Backend{
		stubBackend{"pubmed"},
		stubBackend{"crossref"},
		stubBackend{"arxiv"},
		stubBackend{"openalex"},
	}
	reg := NewRegistry(all, map[string]struct{}{"arxiv": {}})

	names := make([]string, 0, reg.Len())
	for _, b := range reg.Backends() {
		names = append(names, b.Name())
	}
	assert.Equal(t, []string{"crossref", "pubmed", "openalex"}, names)
}
