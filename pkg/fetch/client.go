// Package fetch provides the HTTP client shared by every cloudplay source. It
// wraps net/http with retry and backoff for transient failures, a browser-like
// User-Agent, transparent gzip and brotli decoding and Prometheus
// instrumentation. Sources receive a plain *http.Client so tests can swap the
// transport for a fake.
package fetch

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"cloudplay/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3

	// DefaultUserAgent is sent when neither the caller nor the config sets one.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 3 * time.Second
)

// defaultTransport is a tuned HTTP transport reused across clients.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 15 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Config controls the client returned by NewClient. Zero values select the
// defaults.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	ProxyURL  string
	Log       logrus.FieldLogger
}

// NewClient returns an http.Client whose transport is a *Transport configured
// from cfg. An invalid ProxyURL is reported as an error.
func NewClient(cfg Config) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	tr := defaultTransport.Clone()
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(u)
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base:      tr,
			Retries:   retries,
			UserAgent: ua,
			Log:       cfg.Log,
		},
	}, nil
}

// Transport is an http.RoundTripper adding default headers, retries and
// response decoding on top of Base.
type Transport struct {
	// Base performs the requests. nil means http.DefaultTransport.
	Base http.RoundTripper
	// Retries is the number of attempts made for idempotent requests.
	Retries int
	// UserAgent is set on requests that do not carry one.
	UserAgent string
	// Backoff is the delay before the first retry; it doubles up to 3s.
	Backoff time.Duration
	Log     logrus.FieldLogger
}

// RoundTrip implements http.RoundTripper. GET and HEAD requests are retried on
// network errors, 429 and 5xx responses. When the caller did not ask for a
// specific encoding the response body is decompressed transparently.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		ua := t.UserAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
	}
	decode := false
	if req.Header.Get("Accept-Encoding") == "" && req.Method != http.MethodHead {
		req.Header.Set("Accept-Encoding", "gzip, br")
		decode = true
	}
	attempts := t.Retries
	if attempts < 1 || !replayable(req) {
		attempts = 1
	}
	backoff := t.Backoff
	if backoff <= 0 {
		backoff = initialBackoff
	}
	host := req.URL.Host
	for attempt := 1; ; attempt++ {
		start := time.Now()
		resp, err := base.RoundTrip(req)
		metrics.FetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		metrics.FetchRequestsTotal.WithLabelValues(host, status).Inc()

		if attempt >= attempts || !retryable(resp, err) {
			if err != nil {
				return nil, err
			}
			if decode {
				if err := decodeBody(resp); err != nil {
					resp.Body.Close()
					return nil, err
				}
			}
			return resp, nil
		}
		if resp != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}
		metrics.FetchRetriesTotal.WithLabelValues(host).Inc()
		if t.Log != nil {
			t.Log.WithFields(logrus.Fields{"url": req.URL.String(), "attempt": attempt, "status": status}).Debug("retrying request")
		}
		timer := time.NewTimer(backoff)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func replayable(req *http.Request) bool {
	if req.Method != http.MethodGet && req.Method != http.MethodHead && req.Method != "" {
		return false
	}
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}
