// Package diag provides the process-wide diagnostic log that XML parse and query
// failures are reported to.
//
// The log has a global capture mode. While capture is enabled, reported entries are
// retained and can be inspected with Count, Last and Entries. While it is disabled,
// entries are forwarded to the log's slog.Logger and dropped. Disabling capture
// discards everything collected so far.
//
// Code that needs to inspect entries produced by its own work acquires the capture
// mode with Acquire and releases it with Scope.Release, which restores the mode that
// was active before:
//
//	scope := diag.Default.Acquire()
//	defer scope.Release()
//	before := diag.Default.Count()
//	// ... work that may Report ...
//	failed := diag.Default.Count() > before
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Level classifies a diagnostic entry.
type Level int

const (
	// LevelWarning is a recoverable problem.
	LevelWarning Level = iota + 1
	// LevelError is a failure of the reporting operation.
	LevelError
	// LevelFatal is a failure that left the reporting component unusable.
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Entry is a single structured diagnostic.
type Entry struct {
	Code    string
	Message string
	Source  string
	Level   Level
	Line    int
	Column  int
}

// String formats the entry as "level [code] message (source) at line l, column c".
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Level.String())
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.Source != "" {
		b.WriteString(" (")
		b.WriteString(e.Source)
		b.WriteByte(')')
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d, column %d", e.Line, e.Column)
	}
	return b.String()
}

// Reporter receives diagnostic entries.
type Reporter interface {
	Report(Entry)
}

// Log is an append-only diagnostic log with a capture mode.
// It is safe for concurrent use.
type Log struct {
	logger  *slog.Logger
	entries []Entry
	owner   sync.Mutex
	mu      sync.Mutex
	capture bool
}

// Default is the process-wide log.
var Default = New(nil)

// New returns a log with capture disabled. A nil logger uses slog.Default at report time.
func New(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Report records e when capture is enabled and forwards it to the logger otherwise.
func (l *Log) Report(e Entry) {
	l.mu.Lock()
	if l.capture {
		l.entries = append(l.entries, e)
		l.mu.Unlock()
		return
	}
	logger := l.logger
	l.mu.Unlock()

	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), slogLevel(e.Level), e.Message,
		slog.String("code", e.Code),
		slog.String("source", e.Source),
		slog.Int("line", e.Line),
		slog.Int("column", e.Column),
	)
}

// Count returns the number of retained entries.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns the most recently retained entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of the retained entries in report order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Clear discards retained entries without changing the capture mode.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Capturing reports whether capture is enabled.
func (l *Log) Capturing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capture
}

// SetCapture switches the capture mode and returns the previous mode.
// It blocks while a Scope holds the mode.
func (l *Log) SetCapture(enabled bool) bool {
	l.owner.Lock()
	defer l.owner.Unlock()
	return l.setCapture(enabled)
}

func (l *Log) setCapture(enabled bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	prior := l.capture
	l.capture = enabled
	if !enabled {
		l.entries = nil
	}
	return prior
}

// Acquire takes exclusive control of the capture mode and enables capture.
// The returned scope must be released on every path; scopes do not nest.
func (l *Log) Acquire() *Scope {
	l.owner.Lock()
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &Scope{log: l, prior: l.capture, mark: len(l.entries)}
	l.capture = true
	return s
}

// Scope is an exclusive hold on a log's capture mode.
type Scope struct {
	log   *Log
	once  sync.Once
	mark  int
	prior bool
}

// Prior reports the capture mode that was active when the scope was acquired.
func (s *Scope) Prior() bool {
	return s.prior
}

// Release restores the prior capture mode and gives up control. Entries
// reported while the scope was held are discarded; when capture was already
// enabled, the entries collected before Acquire are kept. Release is idempotent.
func (s *Scope) Release() {
	s.once.Do(func() {
		l := s.log
		l.mu.Lock()
		l.capture = s.prior
		if !s.prior {
			l.entries = nil
		} else if len(l.entries) > s.mark {
			l.entries = slices.Delete(l.entries, s.mark, len(l.entries))
		}
		l.mu.Unlock()
		l.owner.Unlock()
	})
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
