// Package metrics declares the Prometheus collectors exported by cloudplay.
// Collectors are registered with the default registry on import so any
// package can record values without wiring; `cloudplay serve` exposes them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch metrics
var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_fetch_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"host", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudplay_fetch_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host"},
	)

	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_fetch_retries_total",
			Help: "Total number of retried outbound HTTP requests",
		},
		[]string{"host"},
	)
)

// Source metrics
var (
	SourceTracks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_source_tracks_total",
			Help: "Total number of tracks returned by each source",
		},
		[]string{"source"},
	)

	SourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_source_errors_total",
			Help: "Total number of failed source lookups",
		},
		[]string{"source"},
	)

	PlaylistsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_playlists_built_total",
			Help: "Total number of playlists written, by format",
		},
		[]string{"format"},
	)
)

// HTTP server metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudplay_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)
)
