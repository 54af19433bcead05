// Package logger provides the leveled logging interface shared by every
// comic-looms component. Library packages accept a Logger and default to
// NopLogger; the command line wires a ConsoleLogger, teed into a FileLogger
// when a log file is requested.
package logger

import "fmt"

// Logger defines the interface for leveled logging across comic-looms.
type Logger interface {
	// Debug logs scheduling detail (e.g., "window [3 4 5 6] queued").
	// Backends may drop it unless debug output is enabled.
	Debug(format string, args ...interface{})

	// Info logs an informational message (e.g., "chapter 1 restored with 40 units").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "fetch 12 failed: 503").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "rpc push failed: connection closed").
	Error(format string, args ...interface{})

	// Close releases resources held by the logger.
	// Safe to call multiple times. Returns nil for loggers without resources.
	Close() error
}

// NopLogger discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(format string, args ...interface{})   {}
func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

var _ Logger = (*NopLogger)(nil)

// MockLogger records every call for verification in tests.
// It is not safe for concurrent use.
type MockLogger struct {
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.DebugCalls = append(m.DebugCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return nil
}

var _ Logger = (*MockLogger)(nil)
