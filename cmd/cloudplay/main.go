// Command cloudplay builds playlists of tracks published on cloud services.
// Source references (page, feed, album or playlist URLs and service URIs) are
// resolved into tracks, merged and written as M3U, PLS, XSPF, WPL or JSON.
// Named playlists can be declared in cloudplay.yaml, saved to a SQLite library
// and served over HTTP.
//
// Credentials are provided via environment variables or the config file;
// logs are written to stderr so stdout can carry a playlist.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cloudplay/pkg/config"
	"cloudplay/pkg/version"
)

const defaultConfigFile = "cloudplay.yaml"

// usageError marks failures caused by bad invocation; they exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"build", "[flags] ref...", "build a playlist from source references", cmdBuild},
	{"run", "[name...]", "build the playlists declared in the config file", cmdRun},
	{"list", "", "list saved playlists", cmdList},
	{"show", "[-f format] name", "write a saved playlist to stdout", cmdShow},
	{"delete", "name", "remove a saved playlist", cmdDelete},
	{"serve", "[-addr :4000]", "serve saved playlists over HTTP", cmdServe},
	{"sources", "", "list the available sources", cmdSources},
	{"version", "", "print the version", cmdVersion},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses the global flags, prepares the environment and dispatches to
// the selected command. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(version.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagConfig   string
		flagLogLevel string
		flagDB       string
	)
	fs.StringVar(&flagConfig, "config", "", "YAML config file (default "+defaultConfigFile+" when present)")
	fs.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&flagDB, "db", "", "SQLite playlist library (env DATABASE_PATH, default "+config.DefaultDatabase+")")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}
	name := fs.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "cloudplay: unknown command %q\n", name)
		usage(stderr, fs)
		return 2
	}

	path, optional := flagConfig, false
	if path == "" {
		path, optional = defaultConfigFile, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		fmt.Fprintf(stderr, "cloudplay: %v\n", err)
		return 1
	}
	cfg.ApplyEnv(os.Getenv)
	if flagDB != "" {
		cfg.Database = flagDB
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	log, err := newLogger(cfg.LogLevel, os.Getenv("DEBUG"), stderr)
	if err != nil {
		fmt.Fprintf(stderr, "cloudplay: %v\n", err)
		return 2
	}

	e := &env{cfg: cfg, log: log, stdout: stdout, stderr: stderr}
	defer e.close()
	err = cmd.run(ctx, e, fs.Args()[1:])
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "cloudplay %s: %v\nusage: cloudplay %s %s\n", cmd.name, err, cmd.name, cmd.args)
		return 2
	}
	log.WithError(err).WithField("command", cmd.name).Error("command failed")
	return 1
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "%s\n\nUsage: cloudplay [global flags] <command> [flags] [args]\n\nCommands:\n", version.Description)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nGlobal flags:")
	fs.PrintDefaults()
}
