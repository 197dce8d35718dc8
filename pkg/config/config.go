// Package config loads the cloudplay configuration. Settings come from an
// optional YAML file and are then overridden by environment variables so
// secrets never have to be written to disk.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cloudplay/pkg/fetch"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
)

// DefaultDatabase is used when neither the file nor DATABASE_PATH name one.
const DefaultDatabase = "cloudplay.db"

// HTTP configures the outbound client.
type HTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Proxy     string        `yaml:"proxy,omitempty"`
}

// Credentials holds service API keys.
type Credentials struct {
	SpotifyClientID     string `yaml:"spotify_client_id,omitempty"`
	SpotifyClientSecret string `yaml:"spotify_client_secret,omitempty"`
	SoundCloudClientID  string `yaml:"soundcloud_client_id,omitempty"`
	YouTubeAPIKey       string `yaml:"youtube_api_key,omitempty"`
	TidalToken          string `yaml:"tidal_token,omitempty"`
	TidalCountry        string `yaml:"tidal_country,omitempty"`
}

// Playlist declares a named playlist built by `cloudplay run`.
type Playlist struct {
	Name           string   `yaml:"name"`
	Format         string   `yaml:"format,omitempty"`
	Output         string   `yaml:"output,omitempty"`
	Limit          int      `yaml:"limit,omitempty"`
	KeepDuplicates bool     `yaml:"keep_duplicates,omitempty"`
	SkipErrors     bool     `yaml:"skip_errors,omitempty"`
	Save           bool     `yaml:"save,omitempty"`
	Sources        []string `yaml:"sources"`
}

// Options converts the declaration into builder options.
func (p Playlist) Options() music.Options {
	return music.Options{Limit: p.Limit, KeepDuplicates: p.KeepDuplicates, SkipErrors: p.SkipErrors}
}

// Config models cloudplay.yaml.
type Config struct {
	Database    string      `yaml:"database,omitempty"`
	LogLevel    string      `yaml:"log_level,omitempty"`
	HTTP        HTTP        `yaml:"http"`
	Credentials Credentials `yaml:"credentials"`
	Playlists   []Playlist  `yaml:"playlists,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		HTTP:     HTTP{Timeout: 30 * time.Second, Retries: 3},
	}
}

// Parse decodes, validates and normalises a YAML payload. Unset fields keep
// their defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Normalized(), nil
}

// Load reads the YAML file at path. A missing file yields the defaults when
// optional is set so the CLI works without any configuration.
func Load(path string, optional bool) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings with environment variables. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Credentials.SpotifyClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Credentials.SpotifyClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Credentials.SoundCloudClientID, "SOUNDCLOUD_CLIENT_ID")
	set(&c.Credentials.YouTubeAPIKey, "YOUTUBE_API_KEY")
	set(&c.Credentials.TidalToken, "TIDAL_TOKEN")
	set(&c.Database, "DATABASE_PATH")
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.HTTP.UserAgent, "CLOUDPLAY_USER_AGENT")
	set(&c.HTTP.Proxy, "CLOUDPLAY_PROXY")
}

// Validate reports the first problem found in the configuration.
func (c Config) Validate() error {
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("config: http.timeout must not be negative")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("config: http.retries must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Playlists))
	for i, p := range c.Playlists {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("config: playlists[%d]: name is required", i)
		}
		if err := music.CheckName(name); err != nil {
			return fmt.Errorf("config: playlists[%d]: %w", i, err)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: playlist %q declared twice", name)
		}
		seen[key] = struct{}{}
		if len(p.Sources) == 0 {
			return fmt.Errorf("config: playlist %q has no sources", name)
		}
		if p.Limit < 0 {
			return fmt.Errorf("config: playlist %q: limit must not be negative", name)
		}
		if p.Format != "" {
			if _, err := playlist.ParseFormat(p.Format); err != nil {
				return fmt.Errorf("config: playlist %q: %w", name, err)
			}
		} else if p.Output != "" {
			if _, err := playlist.FormatFromPath(p.Output); err != nil {
				return fmt.Errorf("config: playlist %q: %w", name, err)
			}
		}
	}
	return nil
}

// Normalized returns a copy with trimmed values and every playlist format
// resolved to its canonical name.
func (c Config) Normalized() Config {
	out := c
	out.Database = strings.TrimSpace(out.Database)
	if out.Database == "" {
		out.Database = DefaultDatabase
	}
	out.Playlists = make([]Playlist, 0, len(c.Playlists))
	for _, p := range c.Playlists {
		p.Name = strings.TrimSpace(p.Name)
		p.Output = strings.TrimSpace(p.Output)
		format, err := playlist.ParseFormat(p.Format)
		if err != nil {
			format, err = playlist.FormatFromPath(p.Output)
		}
		if err != nil {
			format = playlist.FormatM3U
		}
		p.Format = string(format)
		sources := make([]string, 0, len(p.Sources))
		for _, s := range p.Sources {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
		p.Sources = sources
		out.Playlists = append(out.Playlists, p)
	}
	return out
}

// Find returns the playlist declared under name, compared case-insensitively.
func (c Config) Find(name string) (Playlist, bool) {
	for _, p := range c.Playlists {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Playlist{}, false
}

// FetchConfig converts the HTTP section for fetch.NewClient.
func (c Config) FetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:   c.HTTP.Timeout,
		Retries:   c.HTTP.Retries,
		UserAgent: c.HTTP.UserAgent,
		ProxyURL:  c.HTTP.Proxy,
	}
}
