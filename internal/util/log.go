package util

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	out    = io.Writer(os.Stderr)
	level  = log.InfoLevel
	logger = newLogger(out, level, false)
)

var (
	mu      sync.Mutex
	asJSON  bool
	logFile *os.File
)

func newLogger(w io.Writer, level log.Level, json bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
	if json {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

// rebuild swaps the process logger, teeing into the log file when one is open. The caller
// holds mu.
func rebuild() {
	w := out
	if logFile != nil {
		w = io.MultiWriter(out, logFile)
	}
	logger = newLogger(w, level, asJSON)
}

// ParseLevel accepts debug, info, warn and error; anything else falls back to info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Setup replaces the process logger. Output defaults to stderr so that commands printing
// prompts on stdout stay pipeable.
func Setup(w io.Writer, lvl string, json bool) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	out, level, asJSON = w, ParseLevel(lvl), json
	rebuild()
}

// Logger returns the structured logger used by internal packages.
func Logger() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetLogFile appends every log line to the file at path as well. Lines are written without
// colour once a file is attached.
func SetLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	rebuild()
	return nil
}

func CloseLogFile() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
		rebuild()
	}
}

func Info(msg string, args ...interface{}) {
	emit(log.InfoLevel, "", msg, args...)
}

func Success(msg string, args ...interface{}) {
	emit(log.InfoLevel, "done", msg, args...)
}

func Fail(msg string, args ...interface{}) {
	emit(log.ErrorLevel, "", msg, args...)
}

func emit(level log.Level, status, msg string, args ...interface{}) {
	l := Logger()
	if status != "" {
		l = l.With("status", status)
	}
	l.Logf(level, msg, args...)
}
