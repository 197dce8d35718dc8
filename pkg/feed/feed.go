// Package feed implements a music.Source for podcast and audio feeds published
// as RSS 2.0 or Atom. Every item carrying an audio enclosure becomes a track,
// in feed order.
package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
	"cloudplay/pkg/webpage"
)

// maxFeedSize bounds the body read from a feed.
const maxFeedSize = 32 << 20

type rss struct {
	Channel struct {
		Title  string    `xml:"title"`
		Author string    `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd author"`
		Items  []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Author    string `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd author"`
	Duration  string `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd duration"`
	Enclosure struct {
		URL  string `xml:"url,attr"`
		Type string `xml:"type,attr"`
	} `xml:"enclosure"`
}

type atomFeed struct {
	Title   string      `xml:"title"`
	Author  atomAuthor  `xml:"author"`
	Entries []atomEntry `xml:"entry"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	ID     string     `xml:"id"`
	Title  string     `xml:"title"`
	Author atomAuthor `xml:"author"`
	Links  []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

// Client reads feeds. HTTP may be nil in which case the shared fetch client is
// used.
type Client struct {
	HTTP *http.Client
}

// Ensure interface compliance at compile time.
var _ music.Source = (*Client)(nil)

// Name implements music.Source.
func (c *Client) Name() string { return "feed" }

// Match accepts URLs that look like feeds: paths ending in .rss, .xml or
// .atom, paths ending in /feed or /rss, and hosts starting with "feeds.".
func (c *Client) Match(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(u.Host), "feeds.") {
		return true
	}
	p := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	for _, suffix := range []string{".rss", ".xml", ".atom", "/feed", "/rss"} {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// Tracks fetches the feed at ref and returns its audio enclosures.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	resp, err := fetch.Get(ctx, c.HTTP, ref)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, err
	}
	tracks, err := Parse(data, resp.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: %s: %w", ref, err)
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// Parse decodes an RSS or Atom document. Relative enclosure URLs are resolved
// against base, which may be nil.
func Parse(data []byte, base *url.URL) ([]music.Track, error) {
	var probe struct{ XMLName xml.Name }
	if err := unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.XMLName.Local {
	case "rss":
		var doc rss
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return fromRSS(doc, base), nil
	case "feed":
		var doc atomFeed
		if err := unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return fromAtom(doc, base), nil
	}
	return nil, fmt.Errorf("unsupported document <%s>", probe.XMLName.Local)
}

func unmarshal(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	return dec.Decode(v)
}

func fromRSS(doc rss, base *url.URL) []music.Track {
	var tracks []music.Track
	for _, item := range doc.Channel.Items {
		if !isAudio(item.Enclosure.Type, item.Enclosure.URL) {
			continue
		}
		t := music.Track{
			ID:       strings.TrimSpace(item.GUID),
			Title:    strings.TrimSpace(item.Title),
			Artist:   firstNonEmpty(item.Author, doc.Channel.Author),
			Album:    strings.TrimSpace(doc.Channel.Title),
			URL:      resolve(base, item.Enclosure.URL),
			Duration: ParseDuration(item.Duration),
		}
		tracks = append(tracks, t)
	}
	return tracks
}

func fromAtom(doc atomFeed, base *url.URL) []music.Track {
	var tracks []music.Track
	for _, e := range doc.Entries {
		for _, l := range e.Links {
			if l.Rel != "enclosure" || !isAudio(l.Type, l.Href) {
				continue
			}
			tracks = append(tracks, music.Track{
				ID:     strings.TrimSpace(e.ID),
				Title:  strings.TrimSpace(e.Title),
				Artist: firstNonEmpty(e.Author.Name, doc.Author.Name),
				Album:  strings.TrimSpace(doc.Title),
				URL:    resolve(base, l.Href),
			})
			break
		}
	}
	return tracks
}

func isAudio(typ, loc string) bool {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ != "" {
		return strings.HasPrefix(typ, "audio/")
	}
	if loc == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(loc))
	return err == nil && webpage.IsAudioPath(u.Path)
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ParseDuration reads itunes:duration values: plain seconds ("3600" or
// "3600.5"), "MM:SS" or "HH:MM:SS". Unparseable values yield zero.
func ParseDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	var total float64
	for _, p := range parts {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total * float64(time.Second))
}
