package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"cloudplay/pkg/metrics"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
)

const maxFilenameLength = 120

var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// safeFilename builds a cross-platform file name from a playlist name and a
// format extension.
func safeFilename(name string, f playlist.Format) string {
	base := strings.TrimSpace(unsafeChars.ReplaceAllString(name, "_"))
	base = strings.Trim(base, ". ")
	if base == "" {
		base = defaultPlaylistName
	}
	if len(base) > maxFilenameLength {
		// cut on a rune boundary so the name stays valid UTF-8
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		base = strings.TrimSpace(base[:cut])
	}
	return base + "." + f.Ext()
}

// outputFormat picks the format from an explicit name, else from the output
// file extension, else M3U.
func outputFormat(name, output string) (playlist.Format, error) {
	if name != "" {
		return playlist.ParseFormat(name)
	}
	if output != "" && !isDir(output) {
		if f, err := playlist.FormatFromPath(output); err == nil {
			return f, nil
		}
	}
	return playlist.FormatM3U, nil
}

func isDir(path string) bool {
	if strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/") {
		return true
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// emit writes p to output, or to stdout when output is empty. A directory
// output receives a file named after the playlist. Files are written to a
// temporary name first and renamed into place.
func (e *env) emit(p *music.Playlist, f playlist.Format, output string) error {
	if output == "" {
		if err := playlist.Write(e.stdout, f, p); err != nil {
			return err
		}
		metrics.PlaylistsBuilt.WithLabelValues(string(f)).Inc()
		return nil
	}
	if isDir(output) {
		output = filepath.Join(output, safeFilename(p.Name, f))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := playlist.Write(tmp, f, p); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", output, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}
	metrics.PlaylistsBuilt.WithLabelValues(string(f)).Inc()
	e.log.WithFields(logrus.Fields{
		"playlist": p.Name,
		"file":     output,
		"tracks":   len(p.Tracks),
		"duration": p.Duration().String(),
	}).Info("playlist written")
	return nil
}
