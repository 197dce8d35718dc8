// Package bandcamp implements a music.Source for Bandcamp album, track and
// artist pages. Bandcamp embeds the release data as JSON in a data-tralbum
// attribute, which is read with goquery instead of scraping the visible
// markup. Artist pages are expanded into every release listed in the music
// grid.
package bandcamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
)

// tralbum mirrors the subset of the embedded release JSON we use.
type tralbum struct {
	Artist  string `json:"artist"`
	URL     string `json:"url"`
	Current struct {
		Title string `json:"title"`
	} `json:"current"`
	TrackInfo []struct {
		ID        int64             `json:"id"`
		Title     string            `json:"title"`
		Duration  float64           `json:"duration"`
		TrackNum  int               `json:"track_num"`
		TitleLink string            `json:"title_link"`
		File      map[string]string `json:"file"`
	} `json:"trackinfo"`
}

// Client fetches Bandcamp pages. HTTP may be nil in which case the shared
// fetch client is used.
type Client struct {
	HTTP *http.Client
}

// Ensure interface compliance at compile time.
var _ music.Source = (*Client)(nil)

// Name implements music.Source.
func (c *Client) Name() string { return "bandcamp" }

// Match accepts bandcamp.com and its artist subdomains.
func (c *Client) Match(u *url.URL) bool {
	return music.HostMatches(u.Host, "bandcamp.com")
}

// Tracks returns the tracks of the release at ref, or of every release listed
// when ref is an artist page.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	doc, page, err := fetch.GetDocument(ctx, c.HTTP, ref)
	if err != nil {
		return nil, err
	}
	if data, ok := doc.Find("[data-tralbum]").First().Attr("data-tralbum"); ok {
		return parseRelease(data, page)
	}
	releases := releaseLinks(doc, page)
	if len(releases) == 0 {
		return nil, music.ErrNoTracks
	}
	var tracks []music.Track
	for _, r := range releases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, page, err := fetch.GetDocument(ctx, c.HTTP, r)
		if err != nil {
			return nil, err
		}
		data, ok := doc.Find("[data-tralbum]").First().Attr("data-tralbum")
		if !ok {
			continue
		}
		ts, err := parseRelease(data, page)
		if err != nil {
			continue
		}
		tracks = append(tracks, ts...)
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// releaseLinks returns the album and track links of an artist's music grid.
func releaseLinks(doc *goquery.Document, page *url.URL) []string {
	var links []string
	seen := map[string]bool{}
	doc.Find("#music-grid li a[href], .music-grid li a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := page.ResolveReference(u)
		if !strings.HasPrefix(abs.Path, "/album/") && !strings.HasPrefix(abs.Path, "/track/") {
			return
		}
		abs.RawQuery = ""
		if s := abs.String(); !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	})
	return links
}

func parseRelease(data string, page *url.URL) ([]music.Track, error) {
	var rel tralbum
	if err := json.Unmarshal([]byte(data), &rel); err != nil {
		return nil, fmt.Errorf("bandcamp: decode release data: %w", err)
	}
	var tracks []music.Track
	for _, ti := range rel.TrackInfo {
		loc := streamURL(ti.File)
		if loc == "" && ti.TitleLink != "" {
			if u, err := url.Parse(ti.TitleLink); err == nil {
				loc = page.ResolveReference(u).String()
			}
		}
		if loc == "" {
			continue
		}
		t := music.Track{
			Title:    strings.TrimSpace(ti.Title),
			Artist:   strings.TrimSpace(rel.Artist),
			Album:    strings.TrimSpace(rel.Current.Title),
			URL:      loc,
			Duration: time.Duration(ti.Duration * float64(time.Second)),
		}
		if ti.ID != 0 {
			t.ID = fmt.Sprintf("bc-%d", ti.ID)
		}
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// streamURL picks mp3-128 when present, otherwise the first encoding by name
// so repeated builds choose the same stream.
func streamURL(files map[string]string) string {
	if loc := files["mp3-128"]; loc != "" {
		return loc
	}
	keys := make([]string, 0, len(files))
	for k, v := range files {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return files[keys[0]]
}
