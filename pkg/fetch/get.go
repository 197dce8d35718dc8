package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"cloudplay/pkg/music"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Status)
}

// Unwrap maps 404 and 410 onto music.ErrNotFound so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound || e.Code == http.StatusGone {
		return music.ErrNotFound
	}
	return nil
}

var (
	fallback     *http.Client
	fallbackOnce sync.Once
)

func client(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	fallbackOnce.Do(func() {
		fallback, _ = NewClient(Config{})
	})
	return fallback
}

// Do sends req with c (or a default client when c is nil) and converts
// non-2xx responses into a *StatusError. The caller closes the body of a
// successful response.
func Do(c *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client(c).Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: req.URL.Redacted()}
	}
	return resp, nil
}

// Get issues a GET request for rawURL.
func Get(ctx context.Context, c *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return Do(c, req)
}

// GetJSON fetches rawURL with the optional extra headers and decodes the JSON
// body into v.
func GetJSON(ctx context.Context, c *http.Client, rawURL string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, hv := range vs {
			req.Header.Add(k, hv)
		}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := Do(c, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("fetch: decode %s: %w", req.URL.Redacted(), err)
	}
	return nil
}

// GetDocument fetches an HTML page and parses it. The returned URL is the
// final location after redirects and should be used to resolve relative
// links.
func GetDocument(ctx context.Context, c *http.Client, rawURL string) (*goquery.Document, *url.URL, error) {
	resp, err := Get(ctx, c, rawURL)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: parse %s: %w", rawURL, err)
	}
	return doc, resp.Request.URL, nil
}
