package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// newLogger returns a logger writing to w. debug mirrors the DEBUG variable
// and forces debug output when set to a true value. Terminals get the text
// formatter, everything else JSON lines.
func newLogger(level, debug string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	lvl := logrus.InfoLevel
	if level != "" {
		l, err := logrus.ParseLevel(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
		lvl = l
	}
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)
	if isTerminal(w) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
