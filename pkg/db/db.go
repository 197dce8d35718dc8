// Package db provides the playlist library used by the application. It wraps
// a SQLite database and exposes helper methods for saving, listing and
// removing built playlists. Callers are expected to open a single DB instance
// using New and reuse it for all operations.
//
// Missing entries are reported with sql.ErrNoRows so callers can respond with
// a 404.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"cloudplay/pkg/music"
)

// DB wraps a sql.DB connection and exposes helper methods for the
// application's persistence layer.
type DB struct {
	*sql.DB
	// now stamps updates; replaced in tests.
	now func() time.Time
}

// New opens the SQLite database located at path. If the file does not
// exist it is created along with the required schema.
func New(path string) (*DB, error) {
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// every :memory: connection is a separate database
	if path == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS playlists (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE, format TEXT NOT NULL, created_at TIMESTAMP, updated_at TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS playlist_sources (playlist_id TEXT NOT NULL, position INTEGER NOT NULL, ref TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS playlist_tracks (playlist_id TEXT NOT NULL, position INTEGER NOT NULL, track_id TEXT, title TEXT, artist TEXT, album TEXT, url TEXT NOT NULL, duration_ms INTEGER, source TEXT)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_playlist ON playlist_sources(playlist_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_playlist ON playlist_tracks(playlist_id, position)`,
	}
	// Errors here likely mean the database file is not writable.
	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			d.Close()
			return nil, fmt.Errorf("init db: %w", err)
		}
	}
	return &DB{DB: d, now: time.Now}, nil
}

// SavedInfo describes how a playlist is stored in the library.
type SavedInfo struct {
	ID      string
	Format  string
	Updated time.Time
}

// Summary is a library entry without its tracks.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Format     string    `json:"format"`
	TrackCount int       `json:"tracks"`
	Updated    time.Time `json:"updated"`
}

// SavePlaylist stores p under its name, replacing any playlist previously saved
// with that name while keeping its ID. format records the preferred output
// format. The playlist ID is returned.
func (db *DB) SavePlaylist(ctx context.Context, p *music.Playlist, format string) (string, error) {
	if p == nil {
		return "", errors.New("save playlist: nil playlist")
	}
	if err := music.CheckName(p.Name); err != nil {
		return "", fmt.Errorf("save playlist: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	// Rollback is a no-op once the transaction has been committed.
	defer tx.Rollback()

	now := db.now().UTC()
	created := p.Created.UTC()
	if p.Created.IsZero() {
		created = now
	}
	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM playlists WHERE name=?`, p.Name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx, `INSERT INTO playlists(id, name, format, created_at, updated_at) VALUES(?,?,?,?,?)`, id, p.Name, format, created, now)
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE playlists SET format=?, created_at=?, updated_at=? WHERE id=?`, format, created, now, id)
	}
	if err != nil {
		return "", err
	}
	if err := deleteChildren(ctx, tx, id); err != nil {
		return "", err
	}
	for i, ref := range p.Sources {
		if _, err := tx.ExecContext(ctx, `INSERT INTO playlist_sources(playlist_id, position, ref) VALUES(?,?,?)`, id, i, ref); err != nil {
			return "", err
		}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO playlist_tracks(playlist_id, position, track_id, title, artist, album, url, duration_ms, source) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, t := range p.Tracks {
		if _, err := stmt.ExecContext(ctx, id, i, t.ID, t.Title, t.Artist, t.Album, t.URL, t.Duration.Milliseconds(), t.Source); err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

func deleteChildren(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_sources WHERE playlist_id=?`, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE playlist_id=?`, id)
	return err
}

// GetPlaylist loads the playlist saved under name together with its storage
// details. sql.ErrNoRows is returned when no such playlist exists.
func (db *DB) GetPlaylist(ctx context.Context, name string) (*music.Playlist, SavedInfo, error) {
	var info SavedInfo
	p := &music.Playlist{Name: name}
	err := db.QueryRowContext(ctx, `SELECT id, format, created_at, updated_at FROM playlists WHERE name=?`, name).
		Scan(&info.ID, &info.Format, &p.Created, &info.Updated)
	if err != nil {
		return nil, SavedInfo{}, err
	}

	rows, err := db.QueryContext(ctx, `SELECT ref FROM playlist_sources WHERE playlist_id=? ORDER BY position`, info.ID)
	if err != nil {
		return nil, SavedInfo{}, err
	}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return nil, SavedInfo{}, err
		}
		p.Sources = append(p.Sources, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, SavedInfo{}, err
	}

	rows, err = db.QueryContext(ctx, `SELECT track_id, title, artist, album, url, duration_ms, source FROM playlist_tracks WHERE playlist_id=? ORDER BY position`, info.ID)
	if err != nil {
		return nil, SavedInfo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t  music.Track
			ms int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.URL, &ms, &t.Source); err != nil {
			return nil, SavedInfo{}, err
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		p.Tracks = append(p.Tracks, t)
	}
	// rows.Err returns the first error encountered while iterating.
	return p, info, rows.Err()
}

// ListPlaylists returns a summary of every saved playlist ordered by name.
func (db *DB) ListPlaylists(ctx context.Context) ([]Summary, error) {
	rows, err := db.QueryContext(ctx, `SELECT p.id, p.name, p.format, p.updated_at, COUNT(t.position) FROM playlists p LEFT JOIN playlist_tracks t ON t.playlist_id = p.id GROUP BY p.id ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Format, &s.Updated, &s.TrackCount); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// DeletePlaylist removes the playlist saved under name. sql.ErrNoRows is
// returned when the playlist does not exist.
func (db *DB) DeletePlaylist(ctx context.Context, name string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM playlists WHERE name=?`, name).Scan(&id); err != nil {
		return err
	}
	if err := deleteChildren(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
