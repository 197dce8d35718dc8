package playlist

import (
	"encoding/xml"
	"io"

	"cloudplay/pkg/music"
	"cloudplay/pkg/version"
)

// XSPF document structure as defined at https://xspf.org/spec
type xspfPlaylist struct {
	XMLName   xml.Name    `xml:"playlist"`
	Version   string      `xml:"version,attr"`
	Namespace string      `xml:"xmlns,attr"`
	Title     string      `xml:"title,omitempty"`
	Creator   string      `xml:"creator,omitempty"`
	Date      string      `xml:"date,omitempty"`
	Tracks    []xspfTrack `xml:"trackList>track"`
}

type xspfTrack struct {
	Location string `xml:"location"`
	Title    string `xml:"title,omitempty"`
	Creator  string `xml:"creator,omitempty"`
	Album    string `xml:"album,omitempty"`
	Duration int64  `xml:"duration,omitempty"`
}

// WriteXSPF writes p as an XSPF version 1 document.
func WriteXSPF(w io.Writer, p *music.Playlist) error {
	doc := xspfPlaylist{
		Version:   "1",
		Namespace: "http://xspf.org/ns/0/",
		Title:     p.Name,
		Creator:   version.String(),
		Tracks:    make([]xspfTrack, len(p.Tracks)),
	}
	if !p.Created.IsZero() {
		doc.Date = p.Created.UTC().Format("2006-01-02T15:04:05Z")
	}
	for i, t := range p.Tracks {
		doc.Tracks[i] = xspfTrack{
			Location: t.URL,
			Title:    t.Title,
			Creator:  t.Artist,
			Album:    t.Album,
			Duration: t.Duration.Milliseconds(),
		}
	}
	return encodeXML(w, doc)
}

func encodeXML(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
