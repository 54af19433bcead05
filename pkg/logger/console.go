package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger writes colored, timestamped lines to a terminal.
// Colors are disabled automatically when the writer is not a TTY
// (see color.NoColor).
type ConsoleLogger struct {
	mu    sync.Mutex
	w     io.Writer
	debug bool
	now   func() time.Time

	debugTag, infoTag, warnTag, errTag string
}

// NewConsoleLogger creates a ConsoleLogger writing to w.
func NewConsoleLogger(w io.Writer, debug bool) *ConsoleLogger {
	return &ConsoleLogger{
		w:        w,
		debug:    debug,
		now:      time.Now,
		debugTag: color.New(color.FgHiBlack).Sprint("DBG"),
		infoTag:  color.New(color.FgCyan).Sprint("INF"),
		warnTag:  color.New(color.FgYellow).Sprint("WRN"),
		errTag:   color.New(color.FgRed, color.Bold).Sprint("ERR"),
	}
}

func (c *ConsoleLogger) write(tag, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s %s %s\n", c.now().Format("15:04:05.000"), tag, fmt.Sprintf(format, args...))
}

func (c *ConsoleLogger) Debug(format string, args ...interface{}) {
	if c.debug {
		c.write(c.debugTag, format, args...)
	}
}

func (c *ConsoleLogger) Info(format string, args ...interface{}) {
	c.write(c.infoTag, format, args...)
}

func (c *ConsoleLogger) Warning(format string, args ...interface{}) {
	c.write(c.warnTag, format, args...)
}

func (c *ConsoleLogger) Error(format string, args ...interface{}) {
	c.write(c.errTag, format, args...)
}

// Close is a no-op; the writer is owned by the caller.
func (c *ConsoleLogger) Close() error {
	return nil
}

var _ Logger = (*ConsoleLogger)(nil)
