package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked for unit testing.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandleFatalError prints `err` and exits. Errors that have a user facing
// message are printed as is. Everything else is printed with the chain of
// operations that led to it.
func HandleFatalError(err error) {
	var friendly errors.Friendly
	if errors.As(err, &friendly) {
		fmt.Fprintln(stderr, friendly.FriendlyMessage())
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	log.WithError(err).Debug("Exiting due to fatal error")
	exit(1)
}

// HandlePanic logs a panic along with its stack trace, and then continues
// panicking. It should be deferred at the top of main.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).
			Errorf("Unexpected panic: %v", r)
		panic(r)
	}
}
