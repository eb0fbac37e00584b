package logging

import (
	"fmt"
	"time"
)

// ComponentLogger provides scoped logging for a specific component of
// the sandbox (builder, filterd, relay, launcher). It writes to both
// a local ErrorLogger (file, for "nothing ever got through, why") and
// a remote Dispatcher (syslog, OTLP) when configured. Nil-safe: if
// both are nil, calls are no-ops, so callers that construct a logger
// only when verbose/remote logging is requested don't need nil checks
// at every call site.
type ComponentLogger struct {
	component   string
	errorLogger *ErrorLogger
	dispatcher  *Dispatcher

	// fields are structured key/value pairs attached to every entry
	// this logger dispatches remotely — e.g. a filter-daemon
	// connection's id, host and port, so a CONNECT decision and its
	// matching splice-closed event can be correlated in the OTLP/
	// syslog backend without parsing the message text.
	fields map[string]any
}

// NewComponentLogger creates a logger for the given component.
// Either errorLogger or dispatcher (or both) may be nil.
func NewComponentLogger(component string, errorLogger *ErrorLogger, dispatcher *Dispatcher) *ComponentLogger {
	return &ComponentLogger{
		component:   component,
		errorLogger: errorLogger,
		dispatcher:  dispatcher,
	}
}

// ComponentLogger creates a scoped logger for the given component.
// The receiver may be nil, in which case only the errorLogger is used.
func (d *Dispatcher) ComponentLogger(component string, errorLogger *ErrorLogger) *ComponentLogger {
	return &ComponentLogger{
		component:   component,
		errorLogger: errorLogger,
		dispatcher:  d,
	}
}

// WithFields returns a derived logger that attaches the given
// key/value pairs to every entry it dispatches remotely, in addition
// to any fields already carried by l. The local error-log file is
// unaffected: it stays a flat "[component] message" line, since
// fields are for structured backends (OTLP attributes, syslog
// structured data) to filter and join on, not for a human tailing a
// file on disk.
func (l *ComponentLogger) WithFields(fields map[string]any) *ComponentLogger {
	if l == nil {
		return nil
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ComponentLogger{
		component:   l.component,
		errorLogger: l.errorLogger,
		dispatcher:  l.dispatcher,
		fields:      merged,
	}
}

// Debugf logs a debug message: splice teardown, retry attempts, and
// other detail that's only interesting while actively troubleshooting
// a connection, not on every request.
func (l *ComponentLogger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.writeLocal(LevelDebug, msg)
	l.dispatch(LevelDebug, msg)
}

// Warnf logs a warning message.
func (l *ComponentLogger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.writeLocal(LevelWarn, msg)
	l.dispatch(LevelWarn, msg)
}

// Infof logs an informational message.
func (l *ComponentLogger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.writeLocal(LevelInfo, msg)
	l.dispatch(LevelInfo, msg)
}

// Errorf logs an error message.
func (l *ComponentLogger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.writeLocal(LevelError, msg)
	l.dispatch(LevelError, msg)
}

// writeLocal writes to the local ErrorLogger file.
func (l *ComponentLogger) writeLocal(level Level, msg string) {
	if l.errorLogger == nil {
		return
	}
	switch level {
	case LevelError:
		l.errorLogger.LogErrorf(l.component, "%s", msg)
	case LevelWarn:
		l.errorLogger.LogErrorf(l.component, "WARN %s", msg)
	case LevelDebug:
		l.errorLogger.LogInfof(l.component, "DEBUG %s", msg)
	default:
		l.errorLogger.LogInfof(l.component, "%s", msg)
	}
}

// dispatch sends the entry to remote backends via the Dispatcher,
// carrying component name plus any fields from WithFields.
func (l *ComponentLogger) dispatch(level Level, msg string) {
	if l.dispatcher == nil {
		return
	}
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields["component"] = l.component
	_ = l.dispatcher.Write(&Entry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	})
}
