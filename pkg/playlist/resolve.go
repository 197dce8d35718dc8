package playlist

import (
	"net/url"
	"path"
	"strings"
)

// resolve turns ref into an absolute URL relative to base when possible.
func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// titleFromURL derives a readable title from the last path segment of a URL.
func titleFromURL(raw string) string {
	u, err := url.Parse(raw)
	p := raw
	if err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSpace(strings.NewReplacer("_", " ").Replace(name))
}

// TitleFromURL is exported for sources that only know a file location.
func TitleFromURL(raw string) string { return titleFromURL(raw) }
