// Package tidal implements the music.Source interface using the public Tidal
// API. Playlists, albums and single tracks are supported. A token is required
// which can be obtained from the Tidal web player. The client does not perform
// authentication itself.
package tidal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
)

const (
	apiBase  = "https://api.tidal.com/v1"
	pageSize = 100
)

// Client queries the Tidal API. A valid Token from the Tidal web player is
// required. If HTTP is nil the shared fetch client is used. CountryCode
// controls localisation and defaults to "US".
type Client struct {
	Token       string
	CountryCode string
	HTTP        *http.Client
}

// Ensure interface compliance.
var _ music.Source = (*Client)(nil)

// Name implements music.Source.
func (c *Client) Name() string { return "tidal" }

// Match accepts tidal.com and listen.tidal.com URLs.
func (c *Client) Match(u *url.URL) bool {
	return music.HostMatches(u.Host, "tidal.com")
}

// item is the subset of the track object returned by the API.
type item struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int    `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
	StreamReady *bool `json:"streamReady"`
}

// Tracks resolves the referenced playlist, album or track. IDs are prefixed
// with "tidal-" to avoid clashing with other services.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("tidal: token required")
	}
	kind, id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	var items []item
	switch kind {
	case "playlist":
		items, err = c.paged(ctx, "/playlists/"+id+"/tracks")
	case "album":
		items, err = c.paged(ctx, "/albums/"+id+"/tracks")
	case "track":
		var it item
		err = c.get(ctx, "/tracks/"+id, nil, &it)
		items = []item{it}
	}
	if err != nil {
		return nil, err
	}
	tracks := make([]music.Track, 0, len(items))
	for _, it := range items {
		if it.ID == 0 || (it.StreamReady != nil && !*it.StreamReady) {
			continue
		}
		tracks = append(tracks, music.Track{
			ID:       fmt.Sprintf("tidal-%d", it.ID),
			Title:    it.Title,
			Artist:   it.Artist.Name,
			Album:    it.Album.Title,
			URL:      fmt.Sprintf("https://tidal.com/browse/track/%d", it.ID),
			Duration: time.Duration(it.Duration) * time.Second,
		})
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// paged follows limit/offset pagination until totalNumberOfItems is reached.
func (c *Client) paged(ctx context.Context, path string) ([]item, error) {
	var all []item
	for offset := 0; ; {
		var page struct {
			TotalNumberOfItems int    `json:"totalNumberOfItems"`
			Items              []item `json:"items"`
		}
		params := url.Values{
			"limit":  {strconv.Itoa(pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if err := c.get(ctx, path, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalNumberOfItems {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	cc := c.CountryCode
	if cc == "" {
		cc = "US"
	}
	params.Set("countryCode", cc)
	header := http.Header{"X-Tidal-Token": {c.Token}}
	return fetch.GetJSON(ctx, c.HTTP, apiBase+path+"?"+params.Encode(), header, v)
}

// ParseRef extracts the resource kind and id from a tidal URL or a
// "tidal:<kind>:<id>" reference.
func ParseRef(ref string) (kind, id string, err error) {
	var segs []string
	if rest, ok := strings.CutPrefix(ref, "tidal:"); ok && !strings.HasPrefix(rest, "//") {
		segs = strings.Split(rest, ":")
	} else {
		u, perr := url.Parse(ref)
		if perr != nil {
			return "", "", fmt.Errorf("tidal: %w: %q", music.ErrUnsupported, ref)
		}
		segs = strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) > 0 && segs[0] == "browse" {
			segs = segs[1:]
		}
	}
	if len(segs) >= 2 && segs[1] != "" {
		switch segs[0] {
		case "playlist", "album", "track":
			return segs[0], segs[1], nil
		}
	}
	return "", "", fmt.Errorf("tidal: %w: %q", music.ErrUnsupported, ref)
}
