// Package logger provides component-scoped structured logging for banter.
//
// Every call carries a component name ("engine", "irc", "config", ...) so a
// multi-bot process can be filtered per subsystem. Fields are optional.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

func current() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLevel accepts debug, info, warn/warning, error. Unknown values keep the
// current level and return false.
func SetLevel(level string) bool {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return false
	}
	current().SetLevel(lvl)
	return true
}

// SetFormat switches between "text" (default) and "json" output.
func SetFormat(format string) {
	l := current()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// SetOutput redirects log output. Used by the console channel so log lines
// do not interleave with the readline prompt, and by tests. nil restores
// stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	current().SetOutput(w)
}

func entry(component string, fields map[string]any) *logrus.Entry {
	e := logrus.NewEntry(current())
	if component != "" {
		e = e.WithField("component", component)
	}
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

func Debug(msg string) { entry("", nil).Debug(msg) }
func Info(msg string)  { entry("", nil).Info(msg) }
func Warn(msg string)  { entry("", nil).Warn(msg) }
func Error(msg string) { entry("", nil).Error(msg) }

func DebugC(component, msg string) { entry(component, nil).Debug(msg) }
func InfoC(component, msg string)  { entry(component, nil).Info(msg) }
func WarnC(component, msg string)  { entry(component, nil).Warn(msg) }
func ErrorC(component, msg string) { entry(component, nil).Error(msg) }

func DebugCF(component, msg string, fields map[string]any) {
	entry(component, fields).Debug(msg)
}

func InfoCF(component, msg string, fields map[string]any) {
	entry(component, fields).Info(msg)
}

func WarnCF(component, msg string, fields map[string]any) {
	entry(component, fields).Warn(msg)
}

func ErrorCF(component, msg string, fields map[string]any) {
	entry(component, fields).Error(msg)
}

// Writer returns a pipe that logs each written line at debug level under
// component. Callers close it when done. Used to adapt libraries that want a
// *log.Logger.
func Writer(component string) *io.PipeWriter {
	return entry(component, nil).WriterLevel(logrus.DebugLevel)
}
