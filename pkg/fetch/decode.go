package fetch

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

type decodedBody struct {
	io.Reader
	closer io.Closer
}

func (d decodedBody) Close() error { return d.closer.Close() }

// decodeBody replaces resp.Body with a decompressing reader according to the
// Content-Encoding header. Unknown encodings are left untouched.
func decodeBody(resp *http.Response) error {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			// empty body
			r = strings.NewReader("")
			break
		}
		if err != nil {
			return fmt.Errorf("fetch: gzip body: %w", err)
		}
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	default:
		return nil
	}
	resp.Body = decodedBody{Reader: r, closer: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
