package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"cloudplay/pkg/applemusic"
	"cloudplay/pkg/bandcamp"
	"cloudplay/pkg/config"
	"cloudplay/pkg/db"
	"cloudplay/pkg/feed"
	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
	"cloudplay/pkg/soundcloud"
	"cloudplay/pkg/spotify"
	"cloudplay/pkg/tidal"
	"cloudplay/pkg/webpage"
	"cloudplay/pkg/youtube"
)

// env bundles the dependencies shared by the commands. The HTTP client and
// the database are created on first use.
type env struct {
	cfg    config.Config
	log    *logrus.Logger
	stdout io.Writer
	stderr io.Writer

	http *http.Client
	db   *db.DB
}

func (e *env) httpClient() (*http.Client, error) {
	if e.http != nil {
		return e.http, nil
	}
	fc := e.cfg.FetchConfig()
	fc.Log = e.log
	c, err := fetch.NewClient(fc)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	e.http = c
	return c, nil
}

func (e *env) library() (*db.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	d, err := db.New(e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open library %s: %w", e.cfg.Database, err)
	}
	e.db = d
	return d, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

// registry returns every source in lookup order. The generic web page scraper
// matches any URL and therefore comes last.
func (e *env) registry() (*music.Registry, error) {
	hc, err := e.httpClient()
	if err != nil {
		return nil, err
	}
	cred := e.cfg.Credentials
	var sp music.Source
	if cred.SpotifyClientID != "" && cred.SpotifyClientSecret != "" {
		c, err := spotify.NewSpotifyClient(cred.SpotifyClientID, cred.SpotifyClientSecret, hc)
		if err != nil {
			return nil, err
		}
		sp = c
	} else {
		sp = unconfigured{name: "spotify", domains: []string{"open.spotify.com", "play.spotify.com"}, env: "SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET"}
	}
	return music.NewRegistry(
		sp,
		&soundcloud.Client{ClientID: cred.SoundCloudClientID, HTTP: hc},
		&youtube.Client{Key: cred.YouTubeAPIKey, Client: hc},
		&tidal.Client{Token: cred.TidalToken, CountryCode: cred.TidalCountry, HTTP: hc},
		&applemusic.Client{HTTP: hc},
		&bandcamp.Client{HTTP: hc},
		&feed.Client{HTTP: hc},
		&webpage.Client{HTTP: hc},
	), nil
}

func (e *env) builder() (*music.Builder, error) {
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	return &music.Builder{Registry: reg, Log: e.log}, nil
}

// unconfigured stands in for a source whose credentials are missing so its
// references fail with a helpful message instead of falling through to the
// web page scraper.
type unconfigured struct {
	name    string
	domains []string
	env     string
}

func (u unconfigured) Name() string          { return u.name }
func (u unconfigured) Match(v *url.URL) bool { return music.HostMatches(v.Host, u.domains...) }
func (u unconfigured) Tracks(context.Context, string) ([]music.Track, error) {
	return nil, fmt.Errorf("%s: credentials missing, set %s", u.name, u.env)
}
