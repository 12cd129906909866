package innertube

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type defaultRegistry struct {
	clients map[string]ClientProfile
	mu      sync.RWMutex
}

// NewRegistry creates a new registry with default clients.
func NewRegistry() Registry {
	return &defaultRegistry{
		clients: map[string]ClientProfile{
			"web":          WebClient,
			"web_embedded": WebEmbeddedClient,
			"mweb":         MWebClient,
			"android":      AndroidClient,
			"ios":          IOSClient,
			"tv":           TVClient,
		},
	}
}

func (r *defaultRegistry) Get(name string) (ClientProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

func (r *defaultRegistry) All() []ClientProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ClientProfile, 0, len(r.clients))
	for _, c := range r.clients {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Resolve maps aliases to profiles in the given order, skipping duplicates.
// An empty list resolves to DefaultClientOrder.
func (r *defaultRegistry) Resolve(names []string) ([]ClientProfile, error) {
	if len(names) == 0 {
		names = DefaultClientOrder
	}
	out := make([]ClientProfile, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		p, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown innertube client %q", name)
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
