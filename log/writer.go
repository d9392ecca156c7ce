package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/mattn/go-isatty"
)

// Writer receives formatted log events.
type Writer interface {
	Write(e *Event) error
	Close()
}

type consoleWriter struct {
	writer    io.Writer
	level     Level
	formatter Formatter
}

// NewConsoleWriter returns a Writer that prints events to w at or above
// level. Color is only enabled if useColor is true and w is a terminal.
func NewConsoleWriter(w io.Writer, level Level, useColor bool) Writer {
	writer := &consoleWriter{writer: w, level: level}

	color := useColor
	if color {
		if f, ok := w.(*os.File); ok {
			if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
				color = false
			}
		} else {
			color = false
		}
	}

	writer.formatter = NewConsoleFormatter(color)

	return NewSyncWriter(writer)
}

func (w *consoleWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	_, err := w.writer.Write(w.formatter.Bytes(e))
	return err
}

func (w *consoleWriter) Close() {}

type jsonWriter struct {
	writer    io.Writer
	level     Level
	formatter Formatter
}

// NewJSONWriter returns a Writer that prints events to w as JSON lines.
func NewJSONWriter(w io.Writer, level Level) Writer {
	return NewSyncWriter(&jsonWriter{writer: w, level: level, formatter: NewJSONFormatter()})
}

func (w *jsonWriter) Write(e *Event) error {
	if w.level < e.Level || e.Level == Lsilent {
		return nil
	}

	_, err := w.writer.Write(w.formatter.Bytes(e))
	return err
}

func (w *jsonWriter) Close() {}

type syncWriter struct {
	mu     sync.Mutex
	writer Writer
}

// NewSyncWriter serializes concurrent writes to writer behind a mutex.
func NewSyncWriter(writer Writer) Writer { return &syncWriter{writer: writer} }

func (w *syncWriter) Write(e *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Write(e)
}

func (w *syncWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Close()
}

type multiWriter struct {
	writers []Writer
}

// NewMultiWriter fans out every event to all the given writers.
func NewMultiWriter(writers ...Writer) Writer { return &multiWriter{writers: writers} }

func (w *multiWriter) Write(e *Event) error {
	for _, writer := range w.writers {
		if err := writer.Write(e); err != nil {
			return err
		}
	}
	return nil
}

func (w *multiWriter) Close() {
	for _, writer := range w.writers {
		writer.Close()
	}
}

// ChannelWriter fans events out to dynamically registered subscribers, e.g.
// a per-connection SRT diagnostics tail.
type ChannelWriter interface {
	Writer
	Subscribe() (<-chan Event, func())
}

type channelWriter struct {
	publisher chan Event
	closed    bool
	pubLock   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	subscriber     map[string]chan Event
	subscriberLock sync.Mutex
}

// NewChannelWriter returns a ChannelWriter. Each Subscribe call gets its own
// buffered feed of events; a full subscriber channel silently drops events
// rather than blocking the publisher.
func NewChannelWriter() ChannelWriter {
	w := &channelWriter{
		publisher:  make(chan Event, 1024),
		subscriber: make(map[string]chan Event),
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	go w.broadcast()

	return w
}

func (w *channelWriter) Write(e *Event) error {
	w.pubLock.Lock()
	defer w.pubLock.Unlock()

	if w.closed {
		return fmt.Errorf("log: channel writer is closed")
	}

	select {
	case w.publisher <- *e:
	default:
		return fmt.Errorf("log: subscriber queue is full")
	}

	return nil
}

func (w *channelWriter) Close() {
	w.cancel()

	w.pubLock.Lock()
	w.closed = true
	close(w.publisher)
	w.pubLock.Unlock()

	w.subscriberLock.Lock()
	for _, c := range w.subscriber {
		close(c)
	}
	w.subscriber = make(map[string]chan Event)
	w.subscriberLock.Unlock()
}

func (w *channelWriter) Subscribe() (<-chan Event, func()) {
	l := make(chan Event, 256)

	w.subscriberLock.Lock()
	id := shortuuid.New()
	w.subscriber[id] = l
	w.subscriberLock.Unlock()

	unsubscribe := func() {
		w.subscriberLock.Lock()
		delete(w.subscriber, id)
		w.subscriberLock.Unlock()
	}

	return l, unsubscribe
}

func (w *channelWriter) broadcast() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case e, ok := <-w.publisher:
			if !ok {
				return
			}

			w.subscriberLock.Lock()
			for _, c := range w.subscriber {
				select {
				case c <- e:
				default:
				}
			}
			w.subscriberLock.Unlock()
		}
	}
}
