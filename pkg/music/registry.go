package music

import (
	"fmt"
	"net/url"
	"strings"
)

// Registry holds the configured sources in priority order. Sources that match
// broadly (such as a generic web page scraper) should be registered last.
type Registry struct {
	sources []Source
}

// NewRegistry returns a registry containing the given sources in order.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register appends s. Nil sources are ignored so optional clients can be
// passed unconditionally.
func (r *Registry) Register(s Source) {
	if s == nil {
		return
	}
	r.sources = append(r.sources, s)
}

// Names lists the registered source names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Lookup picks the source responsible for ref and returns it together with
// the reference that should be passed to it. A "name:" prefix selects a source
// explicitly and is removed. Service URIs such as "spotify:playlist:ID" keep
// their prefix, normalised to the source name, because the source needs it to
// tell resource kinds apart.
func (r *Registry) Lookup(ref string) (Source, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, "", fmt.Errorf("%w: empty reference", ErrUnsupported)
	}
	if name, rest, ok := strings.Cut(ref, ":"); ok {
		for _, s := range r.sources {
			if !strings.EqualFold(s.Name(), name) {
				continue
			}
			if strings.HasPrefix(rest, "//") {
				// a plain URL whose scheme happens to equal a source name
				break
			}
			if isURL(rest) {
				return s, rest, nil
			}
			return s, s.Name() + ":" + rest, nil
		}
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q: %v", ErrUnsupported, ref, err)
	}
	for _, s := range r.sources {
		if s.Match(u) {
			return s, ref, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupported, ref)
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HostMatches reports whether host equals one of domains or is a subdomain of
// one of them. Ports are ignored.
func HostMatches(host string, domains ...string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
