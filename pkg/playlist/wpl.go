package playlist

import (
	"encoding/xml"
	"io"
	"strconv"

	"cloudplay/pkg/music"
	"cloudplay/pkg/version"
)

// WPL structure based on Windows Media Player playlist format
type wplDoc struct {
	XMLName xml.Name `xml:"smil"`
	Head    wplHead  `xml:"head"`
	Body    wplBody  `xml:"body"`
}

type wplHead struct {
	Meta  []wplMeta `xml:"meta"`
	Title string    `xml:"title"`
}

type wplMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type wplBody struct {
	Seq wplSeq `xml:"seq"`
}

type wplSeq struct {
	Media []wplMedia `xml:"media"`
}

type wplMedia struct {
	Src string `xml:"src,attr"`
}

// WriteWPL writes p as a Windows Media Player playlist. WPL has no per-entry
// metadata so only the locations are kept.
func WriteWPL(w io.Writer, p *music.Playlist) error {
	doc := wplDoc{
		Head: wplHead{
			Meta: []wplMeta{
				{Name: "Generator", Content: version.String()},
				{Name: "ItemCount", Content: strconv.Itoa(len(p.Tracks))},
			},
			Title: p.Name,
		},
	}
	doc.Body.Seq.Media = make([]wplMedia, len(p.Tracks))
	for i, t := range p.Tracks {
		doc.Body.Seq.Media[i] = wplMedia{Src: t.URL}
	}
	if _, err := io.WriteString(w, "<?wpl version=\"1.0\"?>\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
