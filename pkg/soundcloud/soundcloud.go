// Package soundcloud implements the music.Source interface using the
// SoundCloud api-v2 endpoints used by the web player. Track, set (playlist)
// and user URLs are resolved into tracks; a client_id must be supplied via the
// environment or configuration.
package soundcloud

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
	apiBase = "https://api-v2.soundcloud.com"
	// batchSize is the number of ids requested per /tracks call.
	batchSize = 50
)

// Client talks to the SoundCloud API. If HTTP is nil the shared fetch client
// is used. The zero value is therefore ready for basic use once ClientID is
// set.
type Client struct {
	ClientID string
	HTTP     *http.Client
}

// Ensure interface compliance at compile time.
var _ music.Source = (*Client)(nil)

type apiTrack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	PermalinkURL string `json:"permalink_url"`
	Duration     int64  `json:"duration"`
	User         struct {
		Username string `json:"username"`
	} `json:"user"`
	PublisherMetadata *struct {
		Artist    string `json:"artist"`
		AlbumName string `json:"album_title"`
	} `json:"publisher_metadata"`
}

type resolved struct {
	apiTrack
	Kind   string     `json:"kind"`
	Tracks []apiTrack `json:"tracks"`
}

// Name implements music.Source.
func (c *Client) Name() string { return "soundcloud" }

// Match accepts soundcloud.com URLs.
func (c *Client) Match(u *url.URL) bool {
	return music.HostMatches(u.Host, "soundcloud.com")
}

// Tracks resolves the SoundCloud URL ref and returns the tracks it refers to.
func (c *Client) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	if c.ClientID == "" {
		return nil, fmt.Errorf("soundcloud: client id required")
	}
	params := url.Values{
		"url":       {ref},
		"client_id": {c.ClientID},
	}
	var res resolved
	if err := fetch.GetJSON(ctx, c.HTTP, apiBase+"/resolve?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	var items []apiTrack
	switch res.Kind {
	case "track":
		items = []apiTrack{res.apiTrack}
	case "playlist", "system-playlist":
		var err error
		if items, err = c.complete(ctx, res.Tracks); err != nil {
			return nil, err
		}
	case "user":
		var err error
		if items, err = c.userTracks(ctx, res.ID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("soundcloud: unsupported resource kind %q", res.Kind)
	}
	tracks := make([]music.Track, 0, len(items))
	for _, item := range items {
		if item.PermalinkURL == "" {
			continue
		}
		tracks = append(tracks, convert(item))
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

// complete fills in the playlist entries that the API returns as bare ids,
// keeping the playlist order.
func (c *Client) complete(ctx context.Context, items []apiTrack) ([]apiTrack, error) {
	var missing []int64
	for _, t := range items {
		if t.Title == "" {
			missing = append(missing, t.ID)
		}
	}
	full := make(map[int64]apiTrack, len(missing))
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		ids := make([]string, 0, end-start)
		for _, id := range missing[start:end] {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		params := url.Values{
			"ids":       {strings.Join(ids, ",")},
			"client_id": {c.ClientID},
		}
		var batch []apiTrack
		if err := fetch.GetJSON(ctx, c.HTTP, apiBase+"/tracks?"+params.Encode(), nil, &batch); err != nil {
			return nil, err
		}
		for _, t := range batch {
			full[t.ID] = t
		}
	}
	out := make([]apiTrack, 0, len(items))
	for _, t := range items {
		if t.Title == "" {
			f, ok := full[t.ID]
			if !ok {
				// removed or region blocked
				continue
			}
			t = f
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) userTracks(ctx context.Context, userID int64) ([]apiTrack, error) {
	params := url.Values{
		"limit":     {strconv.Itoa(batchSize)},
		"client_id": {c.ClientID},
	}
	var body struct {
		Collection []apiTrack `json:"collection"`
	}
	u := fmt.Sprintf("%s/users/%d/tracks?%s", apiBase, userID, params.Encode())
	if err := fetch.GetJSON(ctx, c.HTTP, u, nil, &body); err != nil {
		return nil, err
	}
	return body.Collection, nil
}

func convert(item apiTrack) music.Track {
	t := music.Track{
		ID:       fmt.Sprintf("sc-%d", item.ID),
		Title:    item.Title,
		Artist:   item.User.Username,
		URL:      item.PermalinkURL,
		Duration: time.Duration(item.Duration) * time.Millisecond,
	}
	if md := item.PublisherMetadata; md != nil {
		if md.Artist != "" {
			t.Artist = md.Artist
		}
		t.Album = md.AlbumName
	}
	return t
}
