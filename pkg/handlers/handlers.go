// Package handlers implements the HTTP surface of `cloudplay serve`. Saved
// playlists can be listed, built, deleted and downloaded in any supported
// playlist format. Every route is instrumented with Prometheus metrics.
package handlers

import (
	"context"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"cloudplay/pkg/db"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
)

// PlaylistBuilder is satisfied by *music.Builder.
type PlaylistBuilder interface {
	Build(ctx context.Context, name string, refs []string, opts music.Options) (*music.Playlist, error)
}

// Application holds the dependencies used by the HTTP handlers.
type Application struct {
	DB      *db.DB
	Builder PlaylistBuilder
	Log     logrus.FieldLogger
}

func (app *Application) log() logrus.FieldLogger {
	if app.Log == nil {
		return logrus.StandardLogger()
	}
	return app.Log
}

// Routes registers every endpoint on a gorilla/mux router wrapped with the
// security and metrics middleware.
func (app *Application) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(app.instrument, SecurityHeaders)

	r.HandleFunc("/", app.Home).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/playlists/{name}.{ext:[A-Za-z0-9]+}", app.RenderPlaylist).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/playlists", app.ListPlaylists).Methods("GET")
	api.HandleFunc("/playlists", app.CreatePlaylist).Methods("POST")
	api.HandleFunc("/playlists/{name}", app.GetPlaylist).Methods("GET")
	api.HandleFunc("/playlists/{name}", app.DeletePlaylist).Methods("DELETE")
	return r
}

var homeTemplate = template.Must(template.New("home").Funcs(template.FuncMap{
	"path": url.PathEscape,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>cloudplay</title></head>
<body>
<h1>cloudplay</h1>
{{if .Playlists}}<ul>
{{range .Playlists}}<li>{{.Name}} ({{.TrackCount}} tracks){{$name := .Name}}{{range $.Formats}} <a href="/playlists/{{path $name}}.{{.}}">{{.}}</a>{{end}}</li>
{{end}}</ul>
{{else}}<p>No saved playlists yet.</p>
{{end}}</body>
</html>
`))

// Home renders a plain HTML index of the saved playlists with download links
// for each format.
func (app *Application) Home(w http.ResponseWriter, r *http.Request) {
	list, err := app.DB.ListPlaylists(r.Context())
	if err != nil {
		app.log().WithError(err).Error("list playlists")
		http.Error(w, "failed to load playlists", http.StatusInternalServerError)
		return
	}
	data := struct {
		Playlists []db.Summary
		Formats   []playlist.Format
	}{list, playlist.Formats}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, data); err != nil {
		app.log().WithError(err).Error("render index")
	}
}
