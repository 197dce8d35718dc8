package playlist

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloudplay/pkg/music"
)

// WriteM3U writes p as an extended M3U playlist.
func WriteM3U(w io.Writer, p *music.Playlist) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("#EXTM3U\n")
	if p.Name != "" {
		fmt.Fprintf(bw, "#PLAYLIST:%s\n", oneLine(p.Name))
	}
	for _, t := range p.Tracks {
		fmt.Fprintf(bw, "#EXTINF:%d,%s\n", seconds(t), oneLine(t.DisplayName()))
		fmt.Fprintf(bw, "%s\n", lineURL(t.URL))
	}
	return bw.Flush()
}

// ParseM3U reads an M3U or extended M3U playlist. Entries relative to base are
// resolved against it; base may be nil.
func ParseM3U(r io.Reader, base *url.URL) ([]music.Track, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	var (
		tracks  []music.Track
		pending *music.Track
	)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			t := parseExtInf(strings.TrimPrefix(line, "#EXTINF:"))
			pending = &t
			continue
		case strings.HasPrefix(line, "#"):
			continue
		}
		t := music.Track{}
		if pending != nil {
			t = *pending
			pending = nil
		}
		t.URL = resolve(base, line)
		if t.Title == "" {
			t.Title = titleFromURL(t.URL)
		}
		tracks = append(tracks, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("playlist: read m3u: %w", err)
	}
	return tracks, nil
}

// parseExtInf handles "<seconds>[ attrs],<display>" where display is usually
// "Artist - Title".
func parseExtInf(s string) music.Track {
	var t music.Track
	info, display, _ := strings.Cut(s, ",")
	if f := strings.Fields(info); len(f) > 0 {
		if n, err := strconv.ParseFloat(f[0], 64); err == nil && n > 0 {
			t.Duration = time.Duration(n * float64(time.Second))
		}
	}
	display = strings.TrimSpace(display)
	if artist, title, ok := strings.Cut(display, " - "); ok {
		t.Artist = strings.TrimSpace(artist)
		t.Title = strings.TrimSpace(title)
	} else {
		t.Title = display
	}
	return t
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// lineURL percent-encodes control characters so a location always occupies a
// single line of a line based playlist.
func lineURL(s string) string {
	if strings.IndexFunc(s, isCtl) < 0 {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c == 0x7f {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isCtl(r rune) bool { return r < 0x20 || r == 0x7f }
