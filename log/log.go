// Package log provides an opinionated logging facility with four severity
// levels and a small set of pluggable outputs.
package log

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Level represents a log severity.
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

// String returns a string representing the log level.
func (level Level) String() string {
	names := []string{"SILENT", "ERROR", "WARN", "INFO", "DEBUG"}

	if level > Ldebug {
		return "UNKNOWN"
	}

	return names[level]
}

// Fields is a set of key/value pairs attached to a log event.
type Fields map[string]interface{}

// Logger writes structured, leveled log messages tagged with a component name.
type Logger interface {
	// WithOutput returns a clone of this logger that writes to w.
	WithOutput(w Writer) Logger

	// WithComponent returns a clone of this logger tagged with the given component.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	Log(format string, args ...interface{})

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Write implements io.Writer so a Logger can back the standard log package.
	Write(p []byte) (int, error)

	Close()
}

type logger struct {
	output     Writer
	component  string
	modulePath string
}

// New returns a Logger tagged with the given component. Until WithOutput is
// called, log events are discarded.
func New(component string) Logger {
	l := &logger{component: component}

	if info, ok := debug.ReadBuildInfo(); ok {
		l.modulePath = info.Path
	}

	return l
}

func (l *logger) Close() {
	if l.output != nil {
		l.output.Close()
	}
}

func (l *logger) clone() *logger {
	return &logger{output: l.output, component: l.component, modulePath: l.modulePath}
}

func (l *logger) WithOutput(w Writer) Logger {
	clone := l.clone()
	clone.output = w
	return clone
}

func (l *logger) WithComponent(component string) Logger {
	clone := l.clone()
	clone.component = component
	return clone
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newEvent(l).WithField(key, value)
}

func (l *logger) WithFields(f Fields) Logger { return newEvent(l).WithFields(f) }
func (l *logger) WithError(err error) Logger { return newEvent(l).WithError(err) }

func (l *logger) Log(format string, args ...interface{}) { newEvent(l).Log(format, args...) }

func (l *logger) Debug() Logger { return newEvent(l).Debug() }
func (l *logger) Info() Logger  { return newEvent(l).Info() }
func (l *logger) Warn() Logger  { return newEvent(l).Warn() }
func (l *logger) Error() Logger { return newEvent(l).Error() }

func (l *logger) Write(p []byte) (int, error) { return newEvent(l).Write(p) }

// Event is a single in-flight log message being built up via the fluent With*
// methods before it is dispatched with Log.
type Event struct {
	logger *logger

	Time      time.Time
	Level     Level
	Component string
	Caller    string
	Message   string

	err  string
	Data Fields
}

func newEvent(l *logger) *Event {
	return &Event{logger: l, Component: l.component, Data: Fields{}}
}

func (e *Event) clone() *Event {
	data := make(Fields, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}

	return &Event{
		Time: e.Time, Caller: e.Caller, logger: e.logger, Level: e.Level,
		Component: e.Component, Message: e.Message, err: e.err, Data: data,
	}
}

func (e *Event) WithOutput(w Writer) Logger { return e.logger.WithOutput(w) }

func (e *Event) WithComponent(component string) Logger {
	clone := e.clone()
	clone.Component = component
	return clone
}

const maxFields = 1024

func (e *Event) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{key: value})
}

func (e *Event) WithFields(f Fields) Logger {
	if maxFields-len(e.Data)-len(f) < 0 {
		return e
	}

	data := make(Fields, len(e.Data)+len(f))
	for k, v := range e.Data {
		data[k] = v
	}

	for k, v := range f {
		if t := reflect.TypeOf(v); t != nil && (t.Kind() == reflect.Func || (t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Func)) {
			continue
		}
		data[k] = v
	}

	return &Event{logger: e.logger, Component: e.Component, Level: e.Level, err: e.err, Data: data}
}

func (e *Event) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithFields(Fields{"error": err})
}

func (e *Event) Debug() Logger { c := e.clone(); c.Level = Ldebug; return c }
func (e *Event) Info() Logger  { c := e.clone(); c.Level = Linfo; return c }
func (e *Event) Warn() Logger  { c := e.clone(); c.Level = Lwarn; return c }
func (e *Event) Error() Logger { c := e.clone(); c.Level = Lerror; return c }

func (e *Event) Log(format string, args ...interface{}) {
	_, file, line, ok := runtime.Caller(1)
	if ok {
		file = strings.TrimPrefix(file, e.logger.modulePath)
	}

	n := e.clone()
	n.logger = nil
	n.Time = time.Now()
	n.Caller = fmt.Sprintf("%s:%d", file, line)

	if n.Level == Lsilent {
		n.Level = Ldebug
	}

	if len(format) != 0 {
		if len(args) == 0 {
			n.Message = format
		} else {
			n.Message = fmt.Sprintf(format, args...)
		}
	}

	if e.logger.output != nil {
		e.logger.output.Write(n)
	}
}

func (e *Event) Write(p []byte) (int, error) {
	e.Log("%s", strings.TrimSpace(string(p)))
	return len(p), nil
}

func (e *Event) Close() {
	if e.logger != nil {
		e.logger.Close()
	}
}
