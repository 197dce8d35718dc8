package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"cloudplay/pkg/db"
	"cloudplay/pkg/metrics"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
)

// ListPlaylists returns the library summaries as JSON.
func (app *Application) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := app.DB.ListPlaylists(r.Context())
	if err != nil {
		app.log().WithError(err).Error("list playlists")
		respondJSONError(w, http.StatusInternalServerError, "failed to load playlists")
		return
	}
	if list == nil {
		list = []db.Summary{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GetPlaylist returns a saved playlist in the JSON playlist format.
func (app *Application) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	app.writePlaylist(w, r, mux.Vars(r)["name"], playlist.FormatJSON)
}

// RenderPlaylist serves /playlists/{name}.{ext} in the format named by the
// extension.
func (app *Application) RenderPlaylist(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := playlist.ParseFormat(vars["ext"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	app.writePlaylist(w, r, vars["name"], format)
}

func (app *Application) writePlaylist(w http.ResponseWriter, r *http.Request, name string, format playlist.Format) {
	p, _, err := app.DB.GetPlaylist(r.Context(), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "playlist not found")
		} else {
			app.log().WithError(err).WithField("playlist", name).Error("load playlist")
			respondJSONError(w, http.StatusInternalServerError, "failed to load playlist")
		}
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if format != playlist.FormatJSON {
		w.Header().Set("Content-Disposition", `inline; filename="`+url.PathEscape(name)+"."+format.Ext()+`"`)
	}
	if err := playlist.Write(w, format, p); err != nil {
		app.log().WithError(err).WithField("playlist", name).Error("write playlist")
		return
	}
	metrics.PlaylistsBuilt.WithLabelValues(string(format)).Inc()
}

// createRequest is the body accepted by CreatePlaylist.
type createRequest struct {
	Name           string   `json:"name"`
	Sources        []string `json:"sources"`
	Format         string   `json:"format"`
	Limit          int      `json:"limit"`
	KeepDuplicates bool     `json:"keep_duplicates"`
}

// CreatePlaylist builds a playlist from the posted sources and saves it to the
// library. Failing sources are skipped; the request fails only when every
// source failed.
func (app *Application) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Sources) == 0 {
		respondJSONError(w, http.StatusBadRequest, "name and sources are required")
		return
	}
	if err := music.CheckName(req.Name); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit < 0 {
		respondJSONError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	format := playlist.FormatM3U
	if req.Format != "" {
		f, err := playlist.ParseFormat(req.Format)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	log := app.log().WithField("playlist", req.Name)
	opts := music.Options{Limit: req.Limit, KeepDuplicates: req.KeepDuplicates, SkipErrors: true}
	p, err := app.Builder.Build(r.Context(), req.Name, req.Sources, opts)
	if err != nil {
		log.WithError(err).Warn("build failed")
		respondJSONError(w, buildStatus(err), err.Error())
		return
	}
	id, err := app.DB.SavePlaylist(r.Context(), p, string(format))
	if err != nil {
		log.WithError(err).Error("save playlist")
		respondJSONError(w, http.StatusInternalServerError, "failed to save playlist")
		return
	}
	log.WithFields(logrus.Fields{"id": id, "tracks": len(p.Tracks)}).Info("playlist saved")
	w.Header().Set("Location", "/api/playlists/"+url.PathEscape(p.Name))
	respondJSON(w, http.StatusCreated, db.Summary{
		ID:         id,
		Name:       p.Name,
		Format:     string(format),
		TrackCount: len(p.Tracks),
		Updated:    time.Now().UTC(),
	})
}

// buildStatus maps builder errors onto HTTP status codes.
func buildStatus(err error) int {
	switch {
	case errors.Is(err, music.ErrUnsupported), errors.Is(err, music.ErrNoSources):
		return http.StatusBadRequest
	case errors.Is(err, music.ErrNoTracks):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// DeletePlaylist removes a saved playlist, answering 404 when it is missing.
func (app *Application) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := app.DB.DeletePlaylist(r.Context(), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "playlist not found")
			return
		}
		app.log().WithError(err).WithField("playlist", name).Error("delete playlist")
		respondJSONError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
