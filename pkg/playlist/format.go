package playlist

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cloudplay/pkg/music"
)

// Format identifies a playlist file format.
type Format string

const (
	FormatM3U  Format = "m3u"
	FormatPLS  Format = "pls"
	FormatXSPF Format = "xspf"
	FormatWPL  Format = "wpl"
	FormatJSON Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatM3U, FormatPLS, FormatXSPF, FormatWPL, FormatJSON}

// ParseFormat converts a user supplied name into a Format. Matching is case
// insensitive and "m3u8" is accepted as an alias for M3U.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatM3U, "m3u8":
		return FormatM3U, nil
	case FormatPLS, FormatXSPF, FormatWPL, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("playlist: unknown format %q", s)
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("playlist: %s has no extension", path)
	}
	return ParseFormat(ext)
}

// Ext returns the file extension without the leading dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatM3U:
		return "audio/x-mpegurl; charset=utf-8"
	case FormatPLS:
		return "audio/x-scpls"
	case FormatXSPF:
		return "application/xspf+xml"
	case FormatWPL:
		return "application/vnd.ms-wpl"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// Write encodes p in the given format.
func Write(w io.Writer, f Format, p *music.Playlist) error {
	switch f {
	case FormatM3U:
		return WriteM3U(w, p)
	case FormatPLS:
		return WritePLS(w, p)
	case FormatXSPF:
		return WriteXSPF(w, p)
	case FormatWPL:
		return WriteWPL(w, p)
	case FormatJSON:
		return WriteJSON(w, p)
	}
	return fmt.Errorf("playlist: unknown format %q", f)
}

// seconds returns the whole number of seconds or -1 when unknown, as used by
// M3U and PLS.
func seconds(t music.Track) int {
	if t.Duration <= 0 {
		return -1
	}
	return int(t.Duration.Round(1e9).Seconds())
}
