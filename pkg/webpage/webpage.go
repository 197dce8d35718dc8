// Package webpage implements a music.Source for arbitrary web pages. It scrapes
// audio elements and links to audio files out of the HTML, and understands
// remote M3U and PLS playlists, so any page that publishes tracks can be turned
// into a playlist. It is meant to be registered last as the catch-all source.
package webpage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
)

// audioExts lists the file extensions treated as playable audio.
var audioExts = map[string]bool{
	".mp3": true, ".ogg": true, ".oga": true, ".opus": true, ".m4a": true,
	".aac": true, ".flac": true, ".wav": true,
}

// IsAudioPath reports whether p ends in a known audio extension.
func IsAudioPath(p string) bool {
	return audioExts[strings.ToLower(path.Ext(p))]
}

// Client scrapes web pages. HTTP may be nil in which case the shared fetch
// client is used.
type Client struct {
	HTTP *http.Client
}

// Ensure interface compliance at compile time.
var _ music.Source = (*Client)(nil)

// Name implements music.Source.
func (c *Client) Name() string { return "page" }

// Match accepts every http(s) URL.
func (c *Client) Match(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Tracks fetches ref and extracts the tracks it links to.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	resp, err := fetch.Get(ctx, c.HTTP, ref)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	final := resp.Request.URL

	var tracks []music.Track
	switch kind := playlistKind(resp.Header.Get("Content-Type"), final.Path); kind {
	case playlist.FormatM3U:
		tracks, err = playlist.ParseM3U(resp.Body, final)
	case playlist.FormatPLS:
		tracks, err = playlist.ParsePLS(resp.Body, final)
	default:
		var doc *goquery.Document
		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("webpage: parse %s: %w", ref, err)
		}
		tracks = Extract(doc, final)
	}
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// playlistKind recognises playlist responses by MIME type or extension.
func playlistKind(contentType, p string) playlist.Format {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "audio/x-mpegurl", "audio/mpegurl", "application/x-mpegurl", "application/vnd.apple.mpegurl":
		return playlist.FormatM3U
	case "audio/x-scpls", "audio/scpls":
		return playlist.FormatPLS
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".m3u", ".m3u8":
		return playlist.FormatM3U
	case ".pls":
		return playlist.FormatPLS
	}
	return ""
}

// Extract collects the tracks published in doc in document order. Relative
// URLs are resolved against the document's <base href> or page.
func Extract(doc *goquery.Document, page *url.URL) []music.Track {
	base := page
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil && page != nil {
			base = page.ResolveReference(u)
		}
	}
	album := strings.TrimSpace(doc.Find("title").First().Text())

	var tracks []music.Track
	doc.Find("audio, audio source, video source, a[href]").Each(func(_ int, s *goquery.Selection) {
		var raw string
		switch goquery.NodeName(s) {
		case "audio":
			raw, _ = s.Attr("src")
		case "source":
			raw, _ = s.Attr("src")
			if goquery.NodeName(s.Parent()) == "video" {
				typ, _ := s.Attr("type")
				if !strings.HasPrefix(typ, "audio/") && !IsAudioPath(raw) {
					return
				}
			}
		case "a":
			href, _ := s.Attr("href")
			if u, err := url.Parse(strings.TrimSpace(href)); err != nil || !IsAudioPath(u.Path) {
				return
			}
			raw = href
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		loc := u.String()
		if base != nil {
			loc = base.ResolveReference(u).String()
		}
		t := music.Track{URL: loc, Album: album, Title: title(s)}
		if t.Title == "" && goquery.NodeName(s) == "source" {
			t.Title = title(s.Parent())
		}
		if t.Title == "" {
			t.Title = playlist.TitleFromURL(loc)
		}
		if a, ok := s.Attr("data-artist"); ok {
			t.Artist = strings.TrimSpace(a)
		} else if a, ok := s.Parent().Attr("data-artist"); ok {
			t.Artist = strings.TrimSpace(a)
		}
		tracks = append(tracks, t)
	})
	return tracks
}

func title(s *goquery.Selection) string {
	for _, attr := range []string{"data-title", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if goquery.NodeName(s) == "a" {
		return strings.Join(strings.Fields(s.Text()), " ")
	}
	return ""
}
