package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"cloudplay/pkg/config"
	"cloudplay/pkg/handlers"
	"cloudplay/pkg/music"
	"cloudplay/pkg/playlist"
	"cloudplay/pkg/version"
)

const defaultPlaylistName = "cloudplay"

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parseFlags turns flag parsing failures into usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}

func cmdBuild(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "build")
	var (
		flagName   string
		flagFormat string
		flagOutput string
		flagLimit  int
		flagKeep   bool
		flagSkip   bool
		flagSave   bool
	)
	fs.StringVar(&flagName, "name", "", "playlist name")
	fs.StringVar(&flagFormat, "f", "", "output format: m3u, pls, xspf, wpl or json (default from -o, else m3u)")
	fs.StringVar(&flagOutput, "o", "", "output file or directory (default stdout)")
	fs.IntVar(&flagLimit, "limit", 0, "maximum number of tracks (0 means all)")
	fs.BoolVar(&flagKeep, "keep-duplicates", false, "keep tracks that appear more than once")
	fs.BoolVar(&flagSkip, "skip-errors", false, "skip references that fail instead of aborting")
	fs.BoolVar(&flagSave, "save", false, "save the playlist to the library")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	refs := fs.Args()
	if len(refs) == 0 {
		return usagef("at least one source reference is required")
	}
	if flagLimit < 0 {
		return usagef("-limit must not be negative")
	}
	if flagSave && strings.TrimSpace(flagName) == "" {
		return usagef("-save requires -name")
	}
	if flagSave {
		if err := music.CheckName(strings.TrimSpace(flagName)); err != nil {
			return usageError{msg: err.Error()}
		}
	}
	format, err := outputFormat(flagFormat, flagOutput)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	name := strings.TrimSpace(flagName)
	b, err := e.builder()
	if err != nil {
		return err
	}
	opts := music.Options{Limit: flagLimit, KeepDuplicates: flagKeep, SkipErrors: flagSkip}
	p, err := b.Build(ctx, name, refs, opts)
	if err != nil {
		return err
	}
	if err := e.emit(p, format, flagOutput); err != nil {
		return err
	}
	if flagSave {
		return e.save(ctx, p, format)
	}
	return nil
}

func cmdRun(ctx context.Context, e *env, args []string) error {
	if len(e.cfg.Playlists) == 0 {
		return errors.New("no playlists declared in the config file")
	}
	selected := e.cfg.Playlists
	if len(args) > 0 {
		selected = nil
		for _, name := range args {
			p, ok := e.cfg.Find(name)
			if !ok {
				return usagef("playlist %q is not declared in the config file", name)
			}
			selected = append(selected, p)
		}
	}
	b, err := e.builder()
	if err != nil {
		return err
	}
	failed := 0
	for _, decl := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runOne(ctx, b, decl); err != nil {
			e.log.WithError(err).WithField("playlist", decl.Name).Error("playlist failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d playlists failed", failed, len(selected))
	}
	return nil
}

func (e *env) runOne(ctx context.Context, b *music.Builder, decl config.Playlist) error {
	format, err := playlist.ParseFormat(decl.Format)
	if err != nil {
		return err
	}
	p, err := b.Build(ctx, decl.Name, decl.Sources, decl.Options())
	if err != nil {
		return err
	}
	if decl.Output != "" || !decl.Save {
		if err := e.emit(p, format, decl.Output); err != nil {
			return err
		}
	}
	if decl.Save {
		return e.save(ctx, p, format)
	}
	return nil
}

func (e *env) save(ctx context.Context, p *music.Playlist, format playlist.Format) error {
	lib, err := e.library()
	if err != nil {
		return err
	}
	id, err := lib.SavePlaylist(ctx, p, string(format))
	if err != nil {
		return fmt.Errorf("save %s: %w", p.Name, err)
	}
	e.log.WithFields(logrus.Fields{"playlist": p.Name, "id": id, "tracks": len(p.Tracks)}).Info("playlist saved")
	return nil
}

func cmdList(ctx context.Context, e *env, args []string) error {
	if len(args) > 0 {
		return usagef("unexpected arguments")
	}
	lib, err := e.library()
	if err != nil {
		return err
	}
	list, err := lib.ListPlaylists(ctx)
	if err != nil {
		return err
	}
	if isTerminal(e.stdout) {
		tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFORMAT\tTRACKS\tUPDATED\tID")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.Format, s.TrackCount, s.Updated.Local().Format("2006-01-02 15:04"), s.ID)
		}
		return tw.Flush()
	}
	for _, s := range list {
		fmt.Fprintf(e.stdout, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.Format, s.TrackCount, s.Updated.UTC().Format(time.RFC3339), s.ID)
	}
	return nil
}

func cmdShow(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "show")
	flagFormat := fs.String("f", "", "output format (default: the format it was saved with)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("exactly one playlist name is required")
	}
	lib, err := e.library()
	if err != nil {
		return err
	}
	p, info, err := lib.GetPlaylist(ctx, fs.Arg(0))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("playlist %q not found", fs.Arg(0))
	}
	if err != nil {
		return err
	}
	name := *flagFormat
	if name == "" {
		name = info.Format
	}
	format, err := playlist.ParseFormat(name)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	return e.emit(p, format, "")
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return usagef("exactly one playlist name is required")
	}
	lib, err := e.library()
	if err != nil {
		return err
	}
	if err := lib.DeletePlaylist(ctx, args[0]); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("playlist %q not found", args[0])
		}
		return err
	}
	e.log.WithField("playlist", args[0]).Info("playlist deleted")
	return nil
}

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "serve")
	addr := fs.String("addr", ":4000", "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	lib, err := e.library()
	if err != nil {
		return err
	}
	b, err := e.builder()
	if err != nil {
		return err
	}
	app := &handlers.Application{DB: lib, Builder: b, Log: e.log}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// building a playlist may take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	e.log.WithField("addr", *addr).Info("server started")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	e.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cmdSources(_ context.Context, e *env, args []string) error {
	if len(args) > 0 {
		return usagef("unexpected arguments")
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	for _, name := range reg.Names() {
		fmt.Fprintln(e.stdout, name)
	}
	return nil
}

func cmdVersion(_ context.Context, e *env, _ []string) error {
	fmt.Fprintln(e.stdout, version.String())
	return nil
}
