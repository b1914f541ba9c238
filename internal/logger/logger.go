// Package logger holds the shared logrus instance used across the toolchain.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Init configures the shared logger. Verbose enables debug-level output.
func Init(verbose bool) {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   false,
	})

	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output, used by tests to silence the logger.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}
