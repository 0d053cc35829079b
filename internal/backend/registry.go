package backend

// Order is the fixed consultation order for backends (§4.5). The order
// matters only for tie-breaking: when several backends match, the Checker
// takes the first in this order as the source. All enabled backends are
// always queried concurrently, never sequentially.
var Order = []string{
	"crossref",
	"arxiv",
	"dblp",
	"semanticscholar",
	"europepmc",
	"pubmed",
	"openalex",
	"aclanthology",
}

// Registry holds the set of backend clients active for a run, narrowed from
// Order by the caller's disable list (§4.5).
type Registry struct {
	backends []Backend
}

// NewRegistry builds a Registry from all, keeping only the backends present
// in Order (in Order's sequence) whose Name() is not in disabled.
func NewRegistry(all []Backend, disabled map[string]struct{}) *Registry {
	byName := make(map[string]Backend, len(all))
	for _, b := range all {
		byName[b.Name()] = b
	}

	r := &Registry{}
	for _, name := range Order {
		b, ok := byName[name]
		if !ok {
			continue
		}
		if disabled != nil {
			if _, skip := disabled[name]; skip {
				continue
			}
		}
		r.backends = append(r.backends, b)
	}
	return r
}

// Backends returns the enabled backends in consultation order.
func (r *Registry) Backends() []Backend {
	return r.backends
}

// Len returns the number of enabled backends.
func (r *Registry) Len() int {
	return len(r.backends)
}
