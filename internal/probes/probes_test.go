package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristianCantoro/hallucinator/internal/backend"
)

func TestResolveDOIValidOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &Prober{DOIBaseURL: srv.URL}
	result := p.ResolveDOI(context.Background(), srv.Client(), "10.1/x")
	assert.True(t, result.Valid)
}

func TestResolveDOIInvalidOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := &Prober{DOIBaseURL: srv.URL}
	result := p.ResolveDOI(context.Background(), srv.Client(), "10.1/x")
	assert.False(t, result.Valid)
}

func TestResolveDOIValidOnRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/10.1/x" {
			http.Redirect(w, r, "/landing", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &Prober{DOIBaseURL: srv.URL}
	result := p.ResolveDOI(context.Background(), srv.Client(), "10.1/x")
	assert.True(t, result.Valid)
}

func TestResolveDOINetworkErrorIsInvalidNotPanic(t *testing.T) {
	p := &Prober{DOIBaseURL: "http://127.0.0.1:1"}
	result := p.ResolveDOI(context.Background(), http.DefaultClient, "10.1/x")
	assert.False(t, result.Valid)
}

func TestCheckRetractionFindsNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"items":[{"DOI":"10.1/retraction-notice"}]}}`))
	}))
	defer srv.Close()

	p := &Prober{CrossRefBaseURL: srv.URL}
	result := p.CheckRetraction(context.Background(), srv.Client(), "10.1/x")
	require.True(t, result.IsRetracted)
	assert.Equal(t, "10.1/retraction-notice", *result.NoticeDOI)
	assert.Equal(t, "crossref", *result.Source)
}

func TestCheckRetractionNoneFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"items":[]}}`))
	}))
	defer srv.Close()

	p := &Prober{CrossRefBaseURL: srv.URL}
	result := p.CheckRetraction(context.Background(), srv.Client(), "10.1/x")
	assert.False(t, result.IsRetracted)
}

func TestResolveArxivFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
			<entry><title>Attention Is All You Need</title><id>http://arxiv.org/abs/1706.03762</id></entry>
		</feed>`))
	}))
	defer srv.Close()

	p := &Prober{Arxiv: &backend.Arxiv{BaseURL: srv.URL}}
	result := p.ResolveArxiv(context.Background(), srv.Client(), "1706.03762")
	require.True(t, result.Valid)
	assert.Equal(t, "Attention Is All You Need", *result.Title)
}

func TestResolveArxivNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer srv.Close()

	p := &Prober{Arxiv: &backend.Arxiv{BaseURL: srv.URL}}
	result := p.ResolveArxiv(context.Background(), srv.Client(), "0000.00000")
	assert.False(t, result.Valid)
}
