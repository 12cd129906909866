package innertube

import "net/http"

type ClientProfile struct {
	// ID is the registry alias used in configuration and diagnostics
	// (e.g. "web_embedded"), distinct from the Innertube clientName.
	ID              string
	Name            string
	Version         string
	APIKey          string
	UserAgent       string
	ContextNameID   int
	RequireJSPlayer bool
	SupportsCookies bool
	Host            string
	Headers         http.Header
	Screen          string // e.g. "EMBED"
}

type Registry interface {
	Get(name string) (ClientProfile, bool)
	All() []ClientProfile
	Resolve(names []string) ([]ClientProfile, error)
}
