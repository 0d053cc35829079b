package backend

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"
	_ "modernc.org/sqlite"
)

// DBLPOnline queries the public DBLP search API (§6:
// "dblp.org/search/publ/api?q=&format=json").
type DBLPOnline struct {
	BaseURL string
}

func NewDBLPOnline() *DBLPOnline {
	return &DBLPOnline{BaseURL: "https://dblp.org"}
}

func (d *DBLPOnline) Name() string { return "dblp" }

func (d *DBLPOnline) AuthorCheckEnabled() bool { return true }

type dblpResponse struct {
	Result struct {
		Hits struct {
			Hit []dblpHit `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpHit struct {
	Info struct {
		Title   string `json:"title"`
		Authors struct {
			Author json.RawMessage `json:"author"`
		} `json:"authors"`
		URL string `json:"url"`
	} `json:"info"`
}

// dblpAuthorEntry is one author in DBLP's "author" field, which the API
// returns as a single object or as an array of them depending on the number
// of authors; decodeDblpAuthors accepts both shapes.
type dblpAuthorEntry struct {
	Text string `json:"text"`
}

func (d *DBLPOnline) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	q := url.Values{}
	q.Set("q", title)
	q.Set("format", "json")
	q.Set("h", "1")

	body, err := get(ctx, client, d.BaseURL+"/search/publ/api?"+q.Encode(), nil)
	if err != nil {
		return DbQueryResult{}, err
	}

	var parsed dblpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: d.Name(), Err: err}
	}
	if len(parsed.Result.Hits.Hit) == 0 {
		return DbQueryResult{}, nil
	}

	info := parsed.Result.Hits.Hit[0].Info
	authors, err := decodeDblpAuthors(info.Authors.Author)
	if err != nil {
		return DbQueryResult{}, &MalformedResponseError{Backend: d.Name(), Err: err}
	}

	foundTitle := info.Title
	result := DbQueryResult{FoundTitle: &foundTitle, Authors: authors}
	if info.URL != "" {
		u := info.URL
		result.URL = &u
	}
	return result, nil
}

func decodeDblpAuthors(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var single dblpAuthorEntry
	if err := json.Unmarshal(raw, &single); err == nil && single.Text != "" {
		return []string{single.Text}, nil
	}

	var list []dblpAuthorEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	authors := make([]string, 0, len(list))
	for _, a := range list {
		authors = append(authors, a.Text)
	}
	return authors, nil
}

// DBLPOffline reads from a pre-built local mirror of the DBLP catalog
// (§4.5: "[FULL] DBLP dual-mode"), using modernc.org/sqlite — pure Go,
// cgo-free, grounded on its use across the corpus (sqldef-sqldef,
// Aman-CERP-amanmcp, open-policy-agent-eopa). The offline index builder
// itself is the external collaborator per spec.md §1; this type only reads
// a schema of (title, authors, url) rows it assumes already exists.
type DBLPOffline struct {
	db *sql.DB
}

// NewDBLPOffline opens the sqlite database at path. The schema is assumed
// to be `publications(title TEXT, authors TEXT, url TEXT)` with authors as
// a "; "-joined string, built by the external offline-index collaborator.
func NewDBLPOffline(path string) (*DBLPOffline, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("backend: open offline dblp index %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("backend: ping offline dblp index %q: %w", path, err)
	}
	return &DBLPOffline{db: db}, nil
}

func (d *DBLPOffline) Close() error { return d.db.Close() }

func (d *DBLPOffline) Name() string { return "dblp" }

func (d *DBLPOffline) AuthorCheckEnabled() bool { return true }

func (d *DBLPOffline) Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error) {
	if title == "" {
		return DbQueryResult{}, nil
	}

	row := d.db.QueryRowContext(ctx,
		`SELECT title, authors, url FROM publications WHERE title LIKE ? LIMIT 1`,
		"%"+title+"%",
	)

	var foundTitle, authorsJoined, paperURL string
	if err := row.Scan(&foundTitle, &authorsJoined, &paperURL); err != nil {
		if err == sql.ErrNoRows {
			return DbQueryResult{}, nil
		}
		return DbQueryResult{}, fmt.Errorf("backend: offline dblp query: %w", err)
	}

	result := DbQueryResult{FoundTitle: &foundTitle, Authors: splitAuthorsField(authorsJoined)}
	if paperURL != "" {
		result.URL = &paperURL
	}
	return result, nil
}

func splitAuthorsField(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "; ")
}
