package logger

import "errors"

type tee []Logger

// Tee returns a Logger writing every line to each of loggers in order.
// Nil entries are skipped; a single remaining logger is returned as is.
func Tee(loggers ...Logger) Logger {
	var t tee
	for _, l := range loggers {
		if l != nil {
			t = append(t, l)
		}
	}
	switch len(t) {
	case 0:
		return NewNopLogger()
	case 1:
		return t[0]
	}
	return t
}

func (t tee) Debug(format string, args ...interface{}) {
	for _, l := range t {
		l.Debug(format, args...)
	}
}

func (t tee) Info(format string, args ...interface{}) {
	for _, l := range t {
		l.Info(format, args...)
	}
}

func (t tee) Warning(format string, args ...interface{}) {
	for _, l := range t {
		l.Warning(format, args...)
	}
}

func (t tee) Error(format string, args ...interface{}) {
	for _, l := range t {
		l.Error(format, args...)
	}
}

// Close closes every logger, even after a failure, and joins the errors.
func (t tee) Close() error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}
