package bandcamp

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cloudplay/pkg/music"
)

const releaseJSON = `{"artist":"The Band","current":{"title":"First LP"},"trackinfo":[
 {"id":11,"title":"Opener","duration":201.5,"track_num":1,"title_link":"/track/opener","file":{"mp3-128":"https://t4.bcbits.com/stream/a"}},
 {"id":12,"title":"Unreleased","duration":0,"track_num":2,"title_link":"","file":null},
 {"id":13,"title":"Preorder","duration":180,"track_num":3,"title_link":"/track/preorder","file":null}]}`

func releasePage(data string) string {
	return fmt.Sprintf(`<html><body><script src="x.js" data-tralbum="%s"></script></body></html>`, html.EscapeString(data))
}

func newServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/album/first-lp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, releasePage(releaseJSON))
	})
	mux.HandleFunc("/track/single", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, releasePage(`{"artist":"The Band","current":{"title":"Single"},"trackinfo":[{"id":21,"title":"Single","duration":60,"file":{"mp3-128":"https://t4.bcbits.com/stream/s"}}]}`))
	})
	mux.HandleFunc("/music", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ol id="music-grid"><li><a href="/album/first-lp?from=grid">LP</a></li><li><a href="/track/single">S</a></li><li><a href="/album/first-lp">dup</a></li><li><a href="/merch">merch</a></li></ol>`)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing</body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestAlbumPage(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	tracks, err := c.Tracks(context.Background(), srv.URL+"/album/first-lp")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 playable tracks got %+v", tracks)
	}
	if tracks[0].URL != "https://t4.bcbits.com/stream/a" || tracks[0].Artist != "The Band" || tracks[0].Album != "First LP" || tracks[0].ID != "bc-11" {
		t.Errorf("unexpected first %+v", tracks[0])
	}
	if tracks[0].Duration != 201500*time.Millisecond {
		t.Errorf("duration %v", tracks[0].Duration)
	}
	if tracks[1].URL != srv.URL+"/track/preorder" {
		t.Errorf("expected page fallback got %s", tracks[1].URL)
	}
}

func TestArtistPage(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	tracks, err := c.Tracks(context.Background(), srv.URL+"/music")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 3 || tracks[2].Title != "Single" {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
}

func TestEmptyPage(t *testing.T) {
	srv := newServer()
	defer srv.Close()
	c := &Client{HTTP: srv.Client()}
	if _, err := c.Tracks(context.Background(), srv.URL+"/empty"); !errors.Is(err, music.ErrNoTracks) {
		t.Fatalf("expected ErrNoTracks got %v", err)
	}
}

func TestMatch(t *testing.T) {
	c := &Client{}
	for raw, want := range map[string]bool{
		"https://artist.bandcamp.com/album/x": true,
		"https://bandcamp.com/discover":       true,
		"https://soundcloud.com/x":            false,
	} {
		u, _ := url.Parse(raw)
		if got := c.Match(u); got != want {
			t.Errorf("Match(%s) = %v", raw, got)
		}
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		files map[string]string
		want  string
	}{
		{map[string]string{"mp3-v0": "v0", "mp3-128": "128"}, "128"},
		{map[string]string{"mp3-v0": "v0", "flac": "flac", "aac-hi": "aac"}, "aac"},
		{map[string]string{"mp3-v0": ""}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			if got := streamURL(tt.files); got != tt.want {
				t.Fatalf("streamURL(%v) = %q want %q", tt.files, got, tt.want)
			}
		}
	}
}
