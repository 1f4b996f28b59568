package logging

import (
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// New returns the application logger writing to stderr.
// verbosity 0 logs lifecycle events, 1 adds debug chatter, 2 adds traces.
func New(verbosity int) logr.Logger {
	return NewWithWriter(os.Stderr, verbosity)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, verbosity int) logr.Logger {
	stdLogger := log.New(w, "", log.LstdFlags)
	if verbosity < 0 {
		verbosity = 0
	}
	stdr.SetVerbosity(verbosity)
	return stdr.NewWithOptions(stdLogger, stdr.Options{LogCaller: stdr.Error}).WithName("imagery-compare")
}
