// Package logging provides the component logger used throughout this
// module, wrapping go-kit/log the way the corpus's own logging.Logger
// wraps it: GetLogger(name) returns a handle, With(kv...) derives a
// child carrying extra fields, and Debug/Info/Warn/Error take a message
// plus alternating key/value pairs.
package logging

import (
	"os"
	"sync"

	kitlog "github.com/go-kit/log"
)

// Logger is a leveled, structured component logger.
type Logger struct {
	base kitlog.Logger
}

var (
	mu      sync.Mutex
	loggers = map[string]*Logger{}
	root    = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
)

// GetLogger returns the named component logger, creating it on first use.
func GetLogger(module string) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[module]; ok {
		return l
	}
	l := &Logger{base: kitlog.With(root, "ts", kitlog.DefaultTimestampUTC, "module", module)}
	loggers[module] = l
	return l
}

// With derives a child logger carrying the given alternating key/value
// pairs on every subsequent call.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{base: kitlog.With(l.base, kv...)}
}

func (l *Logger) log(lvl string, msg string, kv []interface{}) {
	args := make([]interface{}, 0, len(kv)+4)
	args = append(args, "level", lvl, "msg", msg)
	args = append(args, kv...)
	_ = l.base.Log(args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log("debug", msg, kv) }

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...interface{}) { l.log("info", msg, kv) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.log("warn", msg, kv) }

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...interface{}) { l.log("error", msg, kv) }
