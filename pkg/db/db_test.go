package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"cloudplay/pkg/music"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func samplePlaylist() *music.Playlist {
	return &music.Playlist{
		Name:    "Morning",
		Sources: []string{"https://a.test/1", "feed:https://b.test/rss"},
		Created: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Tracks: []music.Track{
			{ID: "1", Title: "One", Artist: "A", Album: "L", URL: "https://a.test/1.mp3", Duration: 61500 * time.Millisecond, Source: "page"},
			{Title: "Two", URL: "https://a.test/2.mp3", Source: "page"},
		},
	}
}

// TestSaveAndGetPlaylist verifies that playlists round trip through the
// library with order and metadata intact.
func TestSaveAndGetPlaylist(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	id, err := d.SavePlaylist(ctx, samplePlaylist(), "m3u")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id %q is not a uuid: %v", id, err)
	}
	p, info, err := d.GetPlaylist(ctx, "Morning")
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != id || info.Format != "m3u" {
		t.Errorf("unexpected info %+v", info)
	}
	if len(p.Sources) != 2 || p.Sources[1] != "feed:https://b.test/rss" {
		t.Errorf("unexpected sources %v", p.Sources)
	}
	if len(p.Tracks) != 2 || p.Tracks[0].Title != "One" || p.Tracks[1].Title != "Two" {
		t.Fatalf("unexpected tracks %+v", p.Tracks)
	}
	if p.Tracks[0].Duration != 61500*time.Millisecond || p.Tracks[0].Album != "L" {
		t.Errorf("track metadata lost: %+v", p.Tracks[0])
	}
	if !p.Created.Equal(samplePlaylist().Created) {
		t.Errorf("created = %v", p.Created)
	}
}

// TestSaveReplaces ensures saving under an existing name keeps the ID and
// replaces the tracks.
func TestSaveReplaces(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	first, err := d.SavePlaylist(ctx, samplePlaylist(), "m3u")
	if err != nil {
		t.Fatal(err)
	}
	p := samplePlaylist()
	p.Tracks = p.Tracks[:1]
	second, err := d.SavePlaylist(ctx, p, "xspf")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("id changed from %s to %s", first, second)
	}
	list, err := d.ListPlaylists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TrackCount != 1 || list[0].Format != "xspf" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestListOrderedByName(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, name := range []string{"b", "a", "c"} {
		p := samplePlaylist()
		p.Name = name
		if _, err := d.SavePlaylist(ctx, p, "pls"); err != nil {
			t.Fatal(err)
		}
	}
	list, err := d.ListPlaylists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Name != "a" || list[2].Name != "c" || list[0].TrackCount != 2 {
		t.Fatalf("unexpected list %+v", list)
	}
}

// TestDeletePlaylist verifies missing playlists report sql.ErrNoRows.
func TestDeletePlaylist(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	if _, err := d.SavePlaylist(ctx, samplePlaylist(), "m3u"); err != nil {
		t.Fatal(err)
	}
	if err := d.DeletePlaylist(ctx, "Morning"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.GetPlaylist(ctx, "Morning"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows got %v", err)
	}
	if err := d.DeletePlaylist(ctx, "Morning"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows got %v", err)
	}
	var n int
	if err := d.QueryRow(`SELECT COUNT(*) FROM playlist_tracks`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("orphaned tracks: %d %v", n, err)
	}
}

func TestSaveRequiresName(t *testing.T) {
	d := newTestDB(t)
	if _, err := d.SavePlaylist(context.Background(), &music.Playlist{}, "m3u"); err == nil {
		t.Fatal("expected error")
	}
	p := samplePlaylist()
	p.Name = "Rock/Pop"
	if _, err := d.SavePlaylist(context.Background(), p, "m3u"); !errors.Is(err, music.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName got %v", err)
	}
}

// TestFileDatabase ensures data persists across connections to a file.
func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SavePlaylist(context.Background(), samplePlaylist(), "json"); err != nil {
		t.Fatal(err)
	}
	d.Close()
	d, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, info, err := d.GetPlaylist(context.Background(), "Morning"); err != nil || info.Format != "json" {
		t.Fatalf("unexpected %v %+v", err, info)
	}
}
