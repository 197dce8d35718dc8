package playlist

import (
	"encoding/json"
	"io"
	"time"

	"cloudplay/pkg/music"
)

type jsonTrack struct {
	music.Track
	Duration float64 `json:"duration,omitempty"`
}

type jsonPlaylist struct {
	Name     string      `json:"name"`
	Created  time.Time   `json:"created"`
	Sources  []string    `json:"sources,omitempty"`
	Duration float64     `json:"duration"`
	Tracks   []jsonTrack `json:"tracks"`
}

// WriteJSON writes p as indented JSON. Durations are expressed in seconds.
func WriteJSON(w io.Writer, p *music.Playlist) error {
	doc := jsonPlaylist{
		Name:     p.Name,
		Created:  p.Created,
		Sources:  p.Sources,
		Duration: p.Duration().Seconds(),
		Tracks:   make([]jsonTrack, len(p.Tracks)),
	}
	for i, t := range p.Tracks {
		doc.Tracks[i] = jsonTrack{Track: t, Duration: t.Duration.Seconds()}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
