package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"cloudplay/pkg/playlist"
)

const page = `<html><head><title>Live Set</title></head><body>
<a href="/media/one.mp3">One</a>
<a href="/media/two.ogg" data-artist="Band">Two</a>
<a href="/media/one.mp3">One again</a>
<a href="/about">About</a>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/music", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// cli runs the command line and returns the exit code and captured stdout.
func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := cli(t, "version")
	if code != 0 || out != "cloudplay 0.1\n" {
		t.Fatalf("unexpected %d %q", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"frobnicate"},
		{"build"},
		{"build", "-f", "mp3", "https://example.org/"},
		{"build", "-save", "https://example.org/"},
		{"build", "-limit", "-1", "https://example.org/"},
		{"show"},
		{"-log-level", "loud", "version"},
	}
	for _, args := range tests {
		if code, _, _ := cli(t, args...); code != 2 {
			t.Errorf("%v: expected exit 2 got %d", args, code)
		}
	}
}

func TestBuildToStdout(t *testing.T) {
	srv := newSite(t)
	code, out, stderr := cli(t, "build", "-name", "Set", srv.URL+"/music")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.HasPrefix(out, "#EXTM3U\n#PLAYLIST:Set\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if strings.Count(out, srv.URL+"/media/one.mp3") != 1 || !strings.Contains(out, srv.URL+"/media/two.ogg") {
		t.Errorf("unexpected tracks:\n%s", out)
	}
	if strings.Contains(out, "level") {
		t.Error("logs leaked to stdout")
	}
}

func TestBuildToDirectory(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	code, _, stderr := cli(t, "build", "-name", "My: Mix", "-f", "pls", "-keep-duplicates", "-o", dir+string(os.PathSeparator), srv.URL+"/music")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, "My_ Mix.pls"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "NumberOfEntries=3") {
		t.Errorf("duplicates not kept:\n%s", data)
	}
}

func TestBuildFailure(t *testing.T) {
	srv := newSite(t)
	if code, _, _ := cli(t, "build", srv.URL+"/missing"); code != 1 {
		t.Errorf("expected exit 1 got %d", code)
	}
	code, out, _ := cli(t, "build", "-skip-errors", srv.URL+"/missing", srv.URL+"/music")
	if code != 0 || !strings.Contains(out, "one.mp3") {
		t.Errorf("skip-errors: %d %s", code, out)
	}
}

func TestLibraryCommands(t *testing.T) {
	srv := newSite(t)
	dbPath := filepath.Join(t.TempDir(), "lib.db")
	out := filepath.Join(t.TempDir(), "set.xspf")
	code, _, stderr := cli(t, "-db", dbPath, "build", "-name", "Set", "-save", "-o", out, srv.URL+"/music")
	if code != 0 {
		t.Fatalf("build: %d %s", code, stderr)
	}
	if data, err := os.ReadFile(out); err != nil || !strings.Contains(string(data), "<trackList>") {
		t.Fatalf("xspf not written: %v", err)
	}

	code, list, _ := cli(t, "-db", dbPath, "list")
	if code != 0 || !strings.HasPrefix(list, "Set\txspf\t2\t") {
		t.Fatalf("list: %d %q", code, list)
	}
	code, shown, _ := cli(t, "-db", dbPath, "show", "-f", "m3u", "Set")
	if code != 0 || !strings.HasPrefix(shown, "#EXTM3U") {
		t.Fatalf("show: %d %q", code, shown)
	}
	if code, _, _ := cli(t, "-db", dbPath, "delete", "Set"); code != 0 {
		t.Fatalf("delete: %d", code)
	}
	if code, _, _ := cli(t, "-db", dbPath, "show", "Set"); code != 1 {
		t.Errorf("show after delete: expected 1 got %d", code)
	}
	if code, _, _ := cli(t, "-db", dbPath, "delete", "Set"); code != 1 {
		t.Errorf("delete missing: expected 1 got %d", code)
	}
}

func TestRunFromConfig(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cloudplay.yaml")
	cfg := "playlists:\n" +
		"  - name: Set\n" +
		"    output: " + filepath.Join(dir, "out", "set.wpl") + "\n" +
		"    sources: [\"" + srv.URL + "/music\"]\n" +
		"  - name: Broken\n" +
		"    output: " + filepath.Join(dir, "out", "broken.m3u") + "\n" +
		"    sources: [\"" + srv.URL + "/missing\"]\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := cli(t, "-config", cfgPath, "run", "set")
	if code != 0 {
		t.Fatalf("run set: %d %s", code, stderr)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "out", "set.wpl")); err != nil || !strings.Contains(string(data), "<smil>") {
		t.Fatalf("wpl not written: %v", err)
	}
	if code, _, _ := cli(t, "-config", cfgPath, "run"); code != 1 {
		t.Errorf("expected exit 1 when one playlist fails, got %d", code)
	}
	if code, _, _ := cli(t, "-config", cfgPath, "run", "nope"); code != 2 {
		t.Errorf("unknown playlist: expected 2 got %d", code)
	}
	if code, _, _ := cli(t, "-config", filepath.Join(dir, "missing.yaml"), "version"); code != 1 {
		t.Errorf("missing explicit config: expected 1 got %d", code)
	}
}

func TestSources(t *testing.T) {
	code, out, _ := cli(t, "sources")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	names := strings.Fields(out)
	if len(names) != 8 || names[0] != "spotify" || names[len(names)-1] != "page" {
		t.Errorf("unexpected sources %v", names)
	}
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"Morning Mix":   "Morning Mix.m3u",
		`a/b\c:d*e?"f"`: "a_b_c_d_e_f_.m3u",
		"  ":            "cloudplay.m3u",
		"..":            "cloudplay.m3u",
	}
	for in, want := range tests {
		if got := safeFilename(in, playlist.FormatM3U); got != want {
			t.Errorf("safeFilename(%q) = %q want %q", in, got, want)
		}
	}
	if got := safeFilename(strings.Repeat("x", 300), playlist.FormatPLS); len(got) != maxFilenameLength+4 {
		t.Errorf("long name not truncated: %d", len(got))
	}
	got := safeFilename("a"+strings.Repeat("日", 60), playlist.FormatM3U)
	if !utf8.ValidString(got) {
		t.Errorf("truncated name is not valid UTF-8: %q", got)
	}
	if len(got) > maxFilenameLength+4 || !strings.HasSuffix(got, "日.m3u") {
		t.Errorf("unexpected truncation %q (%d bytes)", got, len(got))
	}
}

func TestOutputFormat(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, output string
		want         playlist.Format
	}{
		{"", "", playlist.FormatM3U},
		{"", "x.xspf", playlist.FormatXSPF},
		{"json", "x.xspf", playlist.FormatJSON},
		{"", dir, playlist.FormatM3U},
		{"", "noext", playlist.FormatM3U},
	}
	for _, tt := range tests {
		got, err := outputFormat(tt.name, tt.output)
		if err != nil || got != tt.want {
			t.Errorf("outputFormat(%q, %q) = %s %v", tt.name, tt.output, got, err)
		}
	}
}
