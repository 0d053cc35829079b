package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Attention Is All You Need", "attention is all you need"},
		{"diacritics", "Résumé of Methods", "resume of methods"},
		{"html entities", "A &amp; B: Foo", "a & b: foo"},
		{"greek letters", "α-synuclein aggregation", "alpha-synuclein aggregation"},
		{"whitespace", "  Too   much   space  ", "too much space"},
		{"trailing punct", "A Great Paper.", "a great paper"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Title(tc.in))
		})
	}
}

func TestTitleIdempotent(t *testing.T) {
	inputs := []string{
		"Attention Is All You Need",
		"Résumé of Methods",
		"α-synuclein aggregation in Parkinson's",
		"",
		"   ",
	}
	for _, in := range inputs {
		once := Title(in)
		twice := Title(once)
		assert.Equal(t, once, twice, "normalize.Title must be idempotent for %q", in)
	}
}

func TestAuthors(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "simple list",
			in:   []string{"Vaswani", "Shazeer"},
			want: []string{"vaswani", "shazeer"},
		},
		{
			name: "and joined",
			in:   []string{"Ashish Vaswani and Noam Shazeer"},
			want: []string{"vaswani", "shazeer"},
		},
		{
			name: "comma last first",
			in:   []string{"Vaswani, A."},
			want: []string{"vaswani"},
		},
		{
			name: "diacritics",
			in:   []string{"Gödel"},
			want: []string{"godel"},
		},
		{
			name: "empty dropped",
			in:   []string{"", "  ", "Einstein"},
			want: []string{"einstein"},
		},
		{
			name: "titles stripped",
			in:   []string{"Dr. Jane Doe PhD"},
			want: []string{"doe"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authors(tc.in))
		})
	}
}
