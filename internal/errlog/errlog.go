// Package errlog provides the append-only diagnostic log kept next to the data files.
package errlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampFormat is the layout of the bracketed timestamp on each line.
const TimestampFormat = "2006-01-02 15:04:05"

// Log appends timestamped lines of the form "[<timestamp>] <message>" to a file.
//
// Every line is also forwarded to a slog.Logger at warn level so diagnostics
// show up on the console when the process has one. A nil *Log is valid and
// only forwards to slog.Default().
type Log struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the slog.Logger that mirrors each line.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Log) { lg.logger = l }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(lg *Log) { lg.now = now }
}

// New returns a Log writing to path. The file is created on first write.
func New(path string, opts ...Option) *Log {
	lg := &Log{path: path, now: time.Now}
	for _, o := range opts {
		o(lg)
	}
	return lg
}

// Path returns the log file path.
func (lg *Log) Path() string {
	if lg == nil {
		return ""
	}
	return lg.path
}

// Printf formats a message and appends it to the log.
func (lg *Log) Printf(format string, args ...any) {
	lg.Write(fmt.Sprintf(format, args...))
}

// Error appends err's message and returns err unchanged, so call sites can
// write "return lg.Error(err)".
func (lg *Log) Error(err error) error {
	if err != nil {
		lg.Write(err.Error())
	}
	return err
}

// Write appends a single message. Failures to write the file are reported to
// slog only; logging never fails the caller's operation.
func (lg *Log) Write(msg string) {
	if lg == nil {
		slog.Warn(msg)
		return
	}
	logger := lg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg)
	if lg.path == "" {
		return
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	if err := lg.appendLine(msg); err != nil {
		logger.Error("writing error log", "path", lg.path, "err", err)
	}
}

func (lg *Log) appendLine(msg string) error {
	if err := os.MkdirAll(filepath.Dir(lg.path), 0755); err != nil {
		return err
	}
	// O_APPEND writes of a single line are atomic with respect to other
	// processes appending to the same file.
	f, err := os.OpenFile(lg.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s\n", lg.now().Format(TimestampFormat), msg)
	_, err = io.WriteString(f, line)
	return err
}
