// Package youtube implements the music.Source interface using the YouTube
// Data API. Playlists and single videos are supported. An API key must be
// provided when constructing the client.
//
// Network calls are performed using the provided http.Client allowing
// callers to substitute a test client.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
)

const (
	apiBase  = "https://www.googleapis.com/youtube/v3"
	pageSize = 50
)

// Client provides access to the YouTube Data API.
type Client struct {
	Key    string
	Client *http.Client
}

// ensure Client implements the music.Source interface.
var _ music.Source = (*Client)(nil)

// Name implements music.Source.
func (c *Client) Name() string { return "youtube" }

// Match accepts youtube.com (including music. and m.) and youtu.be URLs.
func (c *Client) Match(u *url.URL) bool {
	return music.HostMatches(u.Host, "youtube.com", "youtu.be")
}

// Tracks returns the videos of the playlist or the single video referenced by
// ref. Besides URLs, "youtube:<id>" references are accepted where playlist ids
// are recognised by their prefix.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	if c.Key == "" {
		return nil, fmt.Errorf("youtube: api key required")
	}
	playlistID, videoID := parseRef(ref)
	var (
		tracks []music.Track
		err    error
	)
	switch {
	case playlistID != "":
		tracks, err = c.playlist(ctx, playlistID)
	case videoID != "":
		tracks, err = c.videos(ctx, []string{videoID})
	default:
		return nil, fmt.Errorf("youtube: %w: %q", music.ErrUnsupported, ref)
	}
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

var playlistPrefixes = []string{"PL", "OL", "UU", "LL", "FL", "RD"}

// parseRef extracts a playlist or video id from a URL or "youtube:<id>".
func parseRef(ref string) (playlistID, videoID string) {
	if id, ok := strings.CutPrefix(ref, "youtube:"); ok && !strings.Contains(id, "/") {
		for _, p := range playlistPrefixes {
			if strings.HasPrefix(id, p) && len(id) > 12 {
				return id, ""
			}
		}
		return "", id
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", ""
	}
	q := u.Query()
	if list := q.Get("list"); list != "" {
		return list, ""
	}
	if v := q.Get("v"); v != "" {
		return "", v
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if music.HostMatches(u.Host, "youtu.be") && segs[0] != "" {
		return "", segs[0]
	}
	if len(segs) == 2 && (segs[0] == "shorts" || segs[0] == "embed" || segs[0] == "live") {
		return "", segs[1]
	}
	return "", ""
}

// playlist reads every page of playlistItems and then looks up durations.
func (c *Client) playlist(ctx context.Context, id string) ([]music.Track, error) {
	var ids []string
	pageToken := ""
	for {
		params := url.Values{
			"part":       {"snippet"},
			"maxResults": {strconv.Itoa(pageSize)},
			"playlistId": {id},
			"key":        {c.Key},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var body struct {
			NextPageToken string `json:"nextPageToken"`
			Items         []struct {
				Snippet struct {
					Title                  string `json:"title"`
					VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
					ResourceID             struct {
						VideoID string `json:"videoId"`
					} `json:"resourceId"`
				} `json:"snippet"`
			} `json:"items"`
		}
		if err := fetch.GetJSON(ctx, c.Client, apiBase+"/playlistItems?"+params.Encode(), nil, &body); err != nil {
			return nil, err
		}
		for _, item := range body.Items {
			s := item.Snippet
			// private and deleted entries have no owner
			if s.ResourceID.VideoID == "" || s.VideoOwnerChannelTitle == "" {
				continue
			}
			ids = append(ids, s.ResourceID.VideoID)
		}
		if body.NextPageToken == "" {
			break
		}
		pageToken = body.NextPageToken
	}
	return c.videos(ctx, ids)
}

// videos fetches snippet and duration for ids in batches, preserving order.
func (c *Client) videos(ctx context.Context, ids []string) ([]music.Track, error) {
	byID := make(map[string]music.Track, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		params := url.Values{
			"part": {"snippet,contentDetails"},
			"id":   {strings.Join(ids[start:end], ",")},
			"key":  {c.Key},
		}
		var body struct {
			Items []struct {
				ID      string `json:"id"`
				Snippet struct {
					Title        string `json:"title"`
					ChannelTitle string `json:"channelTitle"`
				} `json:"snippet"`
				ContentDetails struct {
					Duration string `json:"duration"`
				} `json:"contentDetails"`
			} `json:"items"`
		}
		if err := fetch.GetJSON(ctx, c.Client, apiBase+"/videos?"+params.Encode(), nil, &body); err != nil {
			return nil, err
		}
		for _, item := range body.Items {
			byID[item.ID] = music.Track{
				ID:       item.ID,
				Title:    item.Snippet.Title,
				Artist:   strings.TrimSuffix(item.Snippet.ChannelTitle, " - Topic"),
				URL:      "https://www.youtube.com/watch?v=" + item.ID,
				Duration: ParseISODuration(item.ContentDetails.Duration),
			}
		}
	}
	tracks := make([]music.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts the ISO-8601 durations used by the API ("PT4M13S")
// into a time.Duration. Unknown formats yield zero.
func ParseISODuration(s string) time.Duration {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		d += time.Duration(n) * unit
	}
	return d
}
