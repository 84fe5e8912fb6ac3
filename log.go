package prism

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// loggerPtr stores the active logger. Accessed atomically so that SetLogger
// can be called while capture goroutines are logging.
var loggerPtr atomic.Pointer[logrus.Logger]

func init() {
	loggerPtr.Store(newQuietLogger())
}

// newQuietLogger returns a logger that discards everything.
func newQuietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// SetLogger configures the logger used by prism and its sub-packages.
// By default prism produces no log output. Pass nil to silence it again.
//
// Levels used:
//   - Debug: per-tick timing, resource allocation
//   - Info: lifecycle (engine start/stop, screens added)
//   - Warn: absorbed failures (missing media, rejected commands)
//   - Error: resource failures that disable a screen
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newQuietLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages call this to share the
// configuration.
func Logger() *logrus.Logger {
	return loggerPtr.Load()
}

func logFn(function string) *logrus.Entry {
	return Logger().WithField("function", function)
}
