// Package spotify wraps the official Spotify client library and exposes
// playlists, albums and single tracks as a music.Source. It authenticates using
// the client credentials flow so no user login is required.
//
// The wrapped library does not provide context support so cancellation is
// checked explicitly before each call.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"cloudplay/pkg/music"
)

// catalog defines the subset of the spotify.Client used by this package.
// It allows the concrete client to be replaced in tests.
type catalog interface {
	GetPlaylistTracks(id spotify.ID) (*spotify.PlaylistTrackPage, error)
	GetAlbumTracks(id spotify.ID) (*spotify.SimpleTrackPage, error)
	GetTrack(id spotify.ID) (*spotify.FullTrack, error)
	NextPlaylistPage(p *spotify.PlaylistTrackPage) error
	NextAlbumPage(p *spotify.SimpleTrackPage) error
}

// libClient adapts spotify.Client's generic NextPage to catalog.
type libClient struct {
	spotify.Client
}

func (c *libClient) NextPlaylistPage(p *spotify.PlaylistTrackPage) error { return c.NextPage(p) }
func (c *libClient) NextAlbumPage(p *spotify.SimpleTrackPage) error      { return c.NextPage(p) }

// SpotifyClient resolves Spotify references into tracks.
type SpotifyClient struct {
	client catalog
}

// Compile-time interface check.
var _ music.Source = (*SpotifyClient)(nil)

// NewSpotifyClient returns a client authenticating with the client credentials
// flow. clientID and clientSecret are obtained from the Spotify developer
// dashboard. Tokens are fetched lazily with base, which may be nil.
func NewSpotifyClient(clientID, clientSecret string, base *http.Client) (*SpotifyClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify: client id and secret required")
	}
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return &SpotifyClient{client: &libClient{spotify.NewClient(config.Client(ctx))}}, nil
}

// Name implements music.Source.
func (sc *SpotifyClient) Name() string { return "spotify" }

// Match accepts open.spotify.com and play.spotify.com URLs.
func (sc *SpotifyClient) Match(u *url.URL) bool {
	return music.HostMatches(u.Host, "open.spotify.com", "play.spotify.com")
}

// Tracks implements music.Source for playlist, album and track references.
func (sc *SpotifyClient) Tracks(ctx context.Context, ref string) ([]music.Track, error) {
	kind, id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tracks []music.Track
	switch kind {
	case "playlist":
		tracks, err = sc.playlist(ctx, id)
	case "album":
		tracks, err = sc.album(ctx, id)
	case "track":
		var t *spotify.FullTrack
		t, err = sc.client.GetTrack(id)
		if err == nil {
			tracks = []music.Track{convert(t.SimpleTrack, t.Album.Name)}
		}
	}
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, music.ErrNoTracks
	}
	return tracks, nil
}

func (sc *SpotifyClient) playlist(ctx context.Context, id spotify.ID) ([]music.Track, error) {
	page, err := sc.client.GetPlaylistTracks(id)
	if err != nil {
		return nil, err
	}
	var tracks []music.Track
	for {
		for _, item := range page.Tracks {
			if item.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, convert(item.Track.SimpleTrack, item.Track.Album.Name))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err = sc.client.NextPlaylistPage(page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return tracks, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (sc *SpotifyClient) album(ctx context.Context, id spotify.ID) ([]music.Track, error) {
	page, err := sc.client.GetAlbumTracks(id)
	if err != nil {
		return nil, err
	}
	var tracks []music.Track
	for {
		for _, t := range page.Tracks {
			tracks = append(tracks, convert(t, ""))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err = sc.client.NextAlbumPage(page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return tracks, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func convert(t spotify.SimpleTrack, album string) music.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	link := t.ExternalURLs["spotify"]
	if link == "" {
		link = "https://open.spotify.com/track/" + string(t.ID)
	}
	return music.Track{
		ID:       string(t.ID),
		Title:    t.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    album,
		URL:      link,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

// ParseRef extracts the resource kind and id from a Spotify URI such as
// "spotify:playlist:ID" or an open.spotify.com URL.
func ParseRef(ref string) (kind string, id spotify.ID, err error) {
	var parts []string
	if strings.HasPrefix(ref, "spotify:") {
		parts = strings.Split(strings.TrimPrefix(ref, "spotify:"), ":")
		// legacy spotify:user:NAME:playlist:ID
		if len(parts) == 4 && parts[0] == "user" {
			parts = parts[2:]
		}
	} else {
		u, perr := url.Parse(ref)
		if perr != nil {
			return "", "", fmt.Errorf("spotify: %w: %q", music.ErrUnsupported, ref)
		}
		parts = strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) > 0 && (parts[0] == "embed" || strings.HasPrefix(parts[0], "intl-")) {
			parts = parts[1:]
		}
		if len(parts) == 4 && parts[0] == "user" {
			parts = parts[2:]
		}
	}
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("spotify: %w: %q", music.ErrUnsupported, ref)
	}
	switch parts[0] {
	case "playlist", "album", "track":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("spotify: %w: %q", music.ErrUnsupported, ref)
}
