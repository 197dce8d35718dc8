package playlist

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloudplay/pkg/music"
)

// WritePLS writes p in PLS version 2 format.
func WritePLS(w io.Writer, p *music.Playlist) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("[playlist]\n")
	for i, t := range p.Tracks {
		n := i + 1
		fmt.Fprintf(bw, "File%d=%s\n", n, lineURL(t.URL))
		fmt.Fprintf(bw, "Title%d=%s\n", n, oneLine(t.DisplayName()))
		fmt.Fprintf(bw, "Length%d=%d\n", n, seconds(t))
	}
	fmt.Fprintf(bw, "NumberOfEntries=%d\n", len(p.Tracks))
	bw.WriteString("Version=2\n")
	return bw.Flush()
}

// ParsePLS reads a PLS playlist. Entries are returned in index order.
func ParsePLS(r io.Reader, base *url.URL) ([]music.Track, error) {
	entries := map[int]*music.Track{}
	get := func(n int) *music.Track {
		t, ok := entries[n]
		if !ok {
			t = &music.Track{}
			entries[n] = t
		}
		return t
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		for _, prefix := range []string{"file", "title", "length"} {
			if !strings.HasPrefix(lower, prefix) {
				continue
			}
			n, err := strconv.Atoi(lower[len(prefix):])
			if err != nil {
				break
			}
			t := get(n)
			switch prefix {
			case "file":
				t.URL = resolve(base, strings.TrimSpace(value))
			case "title":
				t.Title = strings.TrimSpace(value)
			case "length":
				if s, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && s > 0 {
					t.Duration = time.Duration(s) * time.Second
				}
			}
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("playlist: read pls: %w", err)
	}
	keys := make([]int, 0, len(entries))
	for n := range entries {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	tracks := make([]music.Track, 0, len(keys))
	for _, n := range keys {
		t := *entries[n]
		if t.URL == "" {
			continue
		}
		if t.Title == "" {
			t.Title = titleFromURL(t.URL)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}
