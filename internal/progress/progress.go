// Package progress declares the progress-signal Sink: a single-method
// interface callers implement however suits them (SSE push, log line,
// counter), fed (text, completed, total) reports at Detector slice
// boundaries and Identifier iterations. The group filter and
// meta-grouping stages do not report progress.
package progress

import (
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
)

// Sink receives progress reports. Implementations must be safe to call
// from the Detector's main goroutine only, and must not block - a Sink
// that wants to do blocking I/O should hand reports off to its own
// goroutine.
type Sink interface {
	Report(text string, completed, total int)
}

// None discards all progress reports.
var None Sink = discard{}

type discard struct{}

func (discard) Report(string, int, int) {}

// Logger reports progress via the standard library logger, formatting
// the completed/total counts with go-humanize for readability in large
// runs (e.g. "processed slice 12480/50000 (12,480/50,000)").
type Logger struct {
	*log.Logger
}

// NewLogger wraps l (or the default logger if l is nil) as a Sink.
func NewLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return Logger{l}
}

// Report implements Sink.
func (lg Logger) Report(text string, completed, total int) {
	lg.Printf("%s (%s/%s)", text, humanize.Comma(int64(completed)), humanize.Comma(int64(total)))
}

// Chan is a Sink that publishes reports on a buffered channel, letting
// an HTTP handler stream them out over SSE without blocking the
// Detector if the reader falls behind - reports are dropped, not
// queued unbounded, when the buffer is full.
type Chan struct {
	C chan Event
}

// Event is one progress report. It carries no timestamp (this package
// never calls time.Now so it stays deterministic under replay).
type Event struct {
	Text      string
	Completed int
	Total     int
}

// NewChan creates a Chan-backed Sink with the given buffer size.
func NewChan(buffer int) *Chan {
	return &Chan{C: make(chan Event, buffer)}
}

// Report implements Sink, dropping the event if the channel is full.
func (c *Chan) Report(text string, completed, total int) {
	select {
	case c.C <- Event{Text: text, Completed: completed, Total: total}:
	default:
	}
}

// String renders an Event the way Logger.Report formats text, for
// callers that want the same human-readable form over the wire.
func (e Event) String() string {
	return fmt.Sprintf("%s (%s/%s)", e.Text, humanize.Comma(int64(e.Completed)), humanize.Comma(int64(e.Total)))
}
