// Package cookies loads YouTube session cookies from cookies.txt files or
// local browser profiles and installs them into an HTTP cookie jar.
package cookies

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	// Register every supported browser store.
	_ "github.com/browserutils/kooky/browser/all"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/net/publicsuffix"
)

// Domain is the cookie domain requests are authenticated against.
const Domain = "youtube.com"

// Options selects where cookies come from. File wins over Browser.
type Options struct {
	File    string
	Browser bool
}

// BrowserReader reads cookies from local browser stores.
type BrowserReader func(ctx context.Context, domainSuffix string) ([]*http.Cookie, error)

// Loader resolves Options into cookies.
type Loader struct {
	Fs      afero.Fs
	Browser BrowserReader
	Logger  zerolog.Logger
}

func NewLoader(fs afero.Fs, logger zerolog.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{Fs: fs, Browser: ReadBrowserCookies, Logger: logger}
}

// Load returns the configured cookies. No source configured yields nil, nil.
func (l *Loader) Load(ctx context.Context, opts Options) ([]*http.Cookie, error) {
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := l.Fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open cookies file: %w", err)
		}
		defer f.Close()
		parsed, err := ParseNetscape(f)
		if err != nil {
			return nil, fmt.Errorf("parse cookies file %s: %w", path, err)
		}
		l.Logger.Info().Str("file", path).Int("count", len(parsed)).Msg("loaded cookies file")
		return filterDomain(parsed, Domain), nil
	}
	if !opts.Browser {
		return nil, nil
	}
	read := l.Browser
	if read == nil {
		read = ReadBrowserCookies
	}
	found, err := read(ctx, Domain)
	if err != nil {
		return nil, fmt.Errorf("read browser cookies: %w", err)
	}
	if len(found) == 0 {
		l.Logger.Warn().Str("domain", Domain).Msg("no browser cookies found")
	} else {
		l.Logger.Info().Str("domain", Domain).Int("count", len(found)).Msg("loaded browser cookies")
	}
	return found, nil
}

// ReadBrowserCookies reads valid cookies for domainSuffix from every browser kooky knows.
func ReadBrowserCookies(ctx context.Context, domainSuffix string) ([]*http.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := kooky.ReadCookies(kooky.Valid, kooky.DomainHasSuffix(domainSuffix))
	out := make([]*http.Cookie, 0, len(found))
	for _, c := range found {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out, nil
}

// NewJar returns a public-suffix aware jar seeded with cookies.
func NewJar(cookies []*http.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	byHost := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		host := strings.TrimPrefix(strings.TrimSpace(c.Domain), ".")
		if host == "" {
			host = "www." + Domain
		}
		byHost[host] = append(byHost[host], c)
	}
	for host, list := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, list)
	}
	return jar, nil
}

func filterDomain(cookies []*http.Cookie, suffix string) []*http.Cookie {
	out := cookies[:0:0]
	for _, c := range cookies {
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if d == suffix || strings.HasSuffix(d, "."+suffix) {
			out = append(out, c)
		}
	}
	return out
}
