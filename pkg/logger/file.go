package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// FileLogger appends uncolored, level-tagged lines to a file it owns.
type FileLogger struct {
	mu     sync.Mutex
	out    *log.Logger
	w      io.WriteCloser
	debug  bool
	closed bool
}

// OpenFileLogger opens path for appending, creating it if needed.
func OpenFileLogger(path string, debug bool) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return NewFileLogger(f, debug), nil
}

// NewFileLogger takes ownership of w; Close closes it.
func NewFileLogger(w io.WriteCloser, debug bool) *FileLogger {
	return &FileLogger{
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		w:     w,
		debug: debug,
	}
}

func (f *FileLogger) print(level, format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.out.Printf("%-5s %s", level, fmt.Sprintf(format, args...))
}

func (f *FileLogger) Debug(format string, args ...interface{}) {
	if f.debug {
		f.print("DEBUG", format, args...)
	}
}

func (f *FileLogger) Info(format string, args ...interface{}) {
	f.print("INFO", format, args...)
}

func (f *FileLogger) Warning(format string, args ...interface{}) {
	f.print("WARN", format, args...)
}

func (f *FileLogger) Error(format string, args ...interface{}) {
	f.print("ERROR", format, args...)
}

// Close closes the underlying file. Lines logged afterwards are dropped.
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.w.Close()
}

var _ Logger = (*FileLogger)(nil)
