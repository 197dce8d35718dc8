// Package music provides the data model and source contract for cloudplay.
// This file implements the Builder which combines the tracks of several
// references into one playlist.
//
// References are resolved one after another so the resulting playlist keeps
// the order the user asked for. Failure of one reference does not have to
// prevent results from the others; see Options.SkipErrors.
package music

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cloudplay/pkg/metrics"
)

// Options tune a single build.
type Options struct {
	// Limit truncates the playlist after de-duplication. Zero means no limit.
	Limit int
	// KeepDuplicates disables de-duplication by Track.Key.
	KeepDuplicates bool
	// SkipErrors logs failing references and carries on. The build still
	// fails when every reference failed.
	SkipErrors bool
}

// Builder resolves references through a Registry and merges the results.
type Builder struct {
	Registry *Registry
	Log      logrus.FieldLogger
	// Now is used to stamp built playlists; nil means time.Now.
	Now func() time.Time
}

// Build fetches every reference in refs and returns the merged playlist.
// Duplicates are removed based on Track.Key unless opts.KeepDuplicates is set.
func (b *Builder) Build(ctx context.Context, name string, refs []string, opts Options) (*Playlist, error) {
	if len(refs) == 0 {
		return nil, ErrNoSources
	}
	log := b.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	pl := &Playlist{Name: name, Sources: append([]string(nil), refs...), Created: now()}
	seen := make(map[string]struct{})
	var firstErr error
	successes := 0
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tracks, src, err := b.fetch(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			err = fmt.Errorf("%s: %w", ref, err)
			if !opts.SkipErrors || isCancellation(err) {
				return nil, err
			}
			log.WithError(err).WithField("ref", ref).Warn("skipping source")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		successes++
		added := 0
		for _, t := range tracks {
			if t.URL == "" {
				log.WithFields(logrus.Fields{"ref": ref, "title": t.Title}).Debug("dropping track without url")
				continue
			}
			if t.Source == "" {
				t.Source = src
			}
			if !opts.KeepDuplicates {
				k := t.Key()
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
			}
			pl.Tracks = append(pl.Tracks, t)
			added++
		}
		log.WithFields(logrus.Fields{"ref": ref, "source": src, "tracks": added}).Info("resolved source")
	}
	// A cancelled build must not be mistaken for a short playlist.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if successes == 0 && firstErr != nil {
		return nil, firstErr
	}
	if opts.Limit > 0 && len(pl.Tracks) > opts.Limit {
		pl.Tracks = pl.Tracks[:opts.Limit]
	}
	if len(pl.Tracks) == 0 {
		return nil, ErrNoTracks
	}
	return pl, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (b *Builder) fetch(ctx context.Context, ref string) ([]Track, string, error) {
	if b.Registry == nil {
		return nil, "", ErrUnsupported
	}
	src, target, err := b.Registry.Lookup(ref)
	if err != nil {
		return nil, "", err
	}
	tracks, err := src.Tracks(ctx, target)
	if err != nil {
		// Empty resources are not counted as source errors.
		if !errors.Is(err, ErrNoTracks) {
			metrics.SourceErrors.WithLabelValues(src.Name()).Inc()
		}
		return nil, src.Name(), err
	}
	metrics.SourceTracks.WithLabelValues(src.Name()).Add(float64(len(tracks)))
	return tracks, src.Name(), nil
}
