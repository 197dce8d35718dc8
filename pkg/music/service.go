// Package music defines the data model shared by every part of cloudplay and
// the contract implemented by track sources. A Source turns a reference (a URL
// of a page, playlist, album or feed hosted somewhere in the cloud) into an
// ordered list of tracks. By depending on this package the rest of the
// application can remain agnostic about the underlying platform.
package music

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrUnsupported indicates that no registered source accepts a reference.
	ErrUnsupported = errors.New("unsupported source reference")
	// ErrNoSources indicates that a build was requested without references.
	ErrNoSources = errors.New("no sources given")
	// ErrNoTracks indicates that a source or build produced no tracks.
	ErrNoTracks = errors.New("no tracks found")
	// ErrNotFound indicates that the upstream resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidName indicates a playlist name that cannot be stored or
	// addressed by URL path.
	ErrInvalidName = errors.New("invalid playlist name")
)

// CheckName validates a playlist name used for saving. Names are addressed as
// a single URL path segment, so slashes and control characters are rejected.
func CheckName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidName)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}

// Track is a single playable item. URL is required; every other field is
// filled in when the source knows it.
type Track struct {
	ID       string        `json:"id,omitempty"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Album    string        `json:"album,omitempty"`
	URL      string        `json:"url"`
	Duration time.Duration `json:"-"`
	Source   string        `json:"source,omitempty"`
}

// Key returns the value used to detect duplicate tracks. Scheme and host are
// compared case-insensitively and fragments are ignored.
func (t Track) Key() string {
	u, err := url.Parse(strings.TrimSpace(t.URL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(t.URL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// DisplayName formats the track as "Artist - Title" falling back to whichever
// part is known.
func (t Track) DisplayName() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	case t.Artist != "":
		return t.Artist
	}
	return t.URL
}

// Playlist is an ordered sequence of tracks together with the references it
// was built from.
type Playlist struct {
	Name    string    `json:"name"`
	Sources []string  `json:"sources,omitempty"`
	Tracks  []Track   `json:"tracks"`
	Created time.Time `json:"created"`
}

// Duration sums the durations of tracks whose length is known.
func (p *Playlist) Duration() time.Duration {
	var d time.Duration
	for _, t := range p.Tracks {
		d += t.Duration
	}
	return d
}

// Source resolves references hosted by one service.
type Source interface {
	// Name identifies the source and doubles as the explicit reference
	// prefix ("soundcloud:https://...").
	Name() string

	// Match reports whether the source handles the given URL without an
	// explicit prefix.
	Match(u *url.URL) bool

	// Tracks fetches the tracks published at ref. The context controls
	// request cancellation. An error wrapping ErrNoTracks is returned when
	// the resource exists but holds nothing playable.
	Tracks(ctx context.Context, ref string) ([]Track, error)
}
