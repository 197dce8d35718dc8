package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
database: lib.db
http:
  timeout: 5s
  retries: 1
credentials:
  soundcloud_client_id: abc
playlists:
  - name: " Morning "
    output: out/morning.xspf
    limit: 10
    skip_errors: true
    sources:
      - https://example.org/music
      - "  "
      - feed:https://example.org/podcast.rss
  - name: Evening
    format: M3U8
    sources: [https://x.test/]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database != "lib.db" || cfg.HTTP.Timeout != 5*time.Second || cfg.HTTP.Retries != 1 {
		t.Errorf("unexpected settings %+v", cfg)
	}
	if cfg.Credentials.SoundCloudClientID != "abc" {
		t.Errorf("credentials %+v", cfg.Credentials)
	}
	if len(cfg.Playlists) != 2 {
		t.Fatalf("playlists %+v", cfg.Playlists)
	}
	m := cfg.Playlists[0]
	if m.Name != "Morning" || m.Format != "xspf" || len(m.Sources) != 2 {
		t.Errorf("unexpected morning %+v", m)
	}
	if opts := m.Options(); opts.Limit != 10 || !opts.SkipErrors {
		t.Errorf("options %+v", opts)
	}
	if cfg.Playlists[1].Format != "m3u" {
		t.Errorf("format alias not normalised: %s", cfg.Playlists[1].Format)
	}
	if p, ok := cfg.Find("evening"); !ok || p.Name != "Evening" {
		t.Errorf("Find failed: %+v %v", p, ok)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database != DefaultDatabase || cfg.HTTP.Timeout != 30*time.Second || cfg.HTTP.Retries != 3 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"missing name":  "playlists:\n  - sources: [a]\n",
		"duplicate":     "playlists:\n  - {name: a, sources: [x]}\n  - {name: A, sources: [y]}\n",
		"no sources":    "playlists:\n  - name: a\n",
		"bad format":    "playlists:\n  - {name: a, format: mp3, sources: [x]}\n",
		"bad output":    "playlists:\n  - {name: a, output: out/file, sources: [x]}\n",
		"negative":      "http:\n  retries: -1\n",
		"slash in name": "playlists:\n  - {name: Rock/Pop, sources: [x]}\n",
		"unknown key":   "databse: x\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"SPOTIFY_CLIENT_ID":     "id",
		"SPOTIFY_CLIENT_SECRET": "secret",
		"DATABASE_PATH":         "/tmp/x.db",
		"CLOUDPLAY_PROXY":       "http://proxy:8080",
		"LOG_LEVEL":             " ",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Credentials.SpotifyClientID != "id" || cfg.Credentials.SpotifyClientSecret != "secret" {
		t.Errorf("credentials %+v", cfg.Credentials)
	}
	if cfg.Database != "/tmp/x.db" || cfg.HTTP.Proxy != "http://proxy:8080" || cfg.HTTP.Retries != 3 {
		t.Errorf("unexpected %+v", cfg)
	}
	if cfg.LogLevel != "" {
		t.Errorf("blank values must not override: %q", cfg.LogLevel)
	}
	fc := cfg.FetchConfig()
	if fc.ProxyURL != "http://proxy:8080" || fc.Timeout != 30*time.Second {
		t.Errorf("fetch config %+v", fc)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if cfg, err := Load(filepath.Join(dir, "missing.yaml"), true); err != nil || cfg.Database != DefaultDatabase {
		t.Fatalf("optional missing file: %v %+v", err, cfg)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml"), false); err == nil {
		t.Fatal("expected error for required file")
	}
	path := filepath.Join(dir, "cloudplay.yaml")
	if err := os.WriteFile(path, []byte("playlists:\n  - name: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, true)
	if err == nil || !strings.Contains(err.Error(), "cloudplay.yaml") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
