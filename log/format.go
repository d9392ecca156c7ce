package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Formatter renders an Event for a Writer.
type Formatter interface {
	Bytes(e *Event) []byte
}

type jsonFormatter struct{}

// NewJSONFormatter returns a Formatter that renders events as JSON lines.
func NewJSONFormatter() Formatter { return &jsonFormatter{} }

func (f *jsonFormatter) Bytes(e *Event) []byte {
	e.Data["ts"] = e.Time
	e.Data["component"] = e.Component

	if len(e.Caller) != 0 {
		e.Data["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		e.Data["message"] = e.Message
	}

	data, _ := json.Marshal(e.Data)

	return append(data, '\n')
}

type consoleFormatter struct {
	color bool
}

// NewConsoleFormatter returns a Formatter for human-readable terminal output.
func NewConsoleFormatter(useColor bool) Formatter {
	return &consoleFormatter{color: useColor}
}

func (f *consoleFormatter) Bytes(e *Event) []byte {
	datetime := e.Time.UTC().Format(time.RFC3339)
	level := e.Level.String()

	if f.color {
		switch e.Level {
		case Ldebug:
			level = fmt.Sprintf("\033[35m%s\033[0m", level)
		case Linfo:
			level = fmt.Sprintf("\033[34m%s\033[0m", level)
		case Lwarn:
			level = fmt.Sprintf("\033[33m%s\033[0m", level)
		case Lerror:
			level = fmt.Sprintf("\033[31m\033[5m%s\033[0m", level)
		}
	}

	message := fmt.Sprintf("%s %s %s", f.kv("ts", datetime), f.kv("level", level), f.kv("component", f.quote(e.Component)))

	if len(e.Message) != 0 {
		message += fmt.Sprintf(" %s", f.kv("msg", f.quote(e.Message)))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		message += fmt.Sprintf(" %s", f.kv(key, f.value(e.Data[key])))
	}

	message += "\n"

	return []byte(message)
}

func (f *consoleFormatter) value(value interface{}) string {
	switch val := value.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return f.quote(val)
	case error:
		return f.quote(val.Error())
	case fmt.Stringer:
		return f.quote(val.String())
	default:
		if b, err := json.Marshal(value); err == nil {
			return string(b)
		}
		return f.quote(fmt.Sprintf("%v", value))
	}
}

func (f *consoleFormatter) kv(key string, value string) string {
	if !f.color {
		return fmt.Sprintf("%s=%s", key, value)
	}

	if key == "error" {
		value = "\033[31m" + value + "\033[0m"
	}

	return fmt.Sprintf("\033[90m%s=\033[0m%s", key, value)
}

func (f *consoleFormatter) quote(s string) string { return strconv.Quote(s) }
