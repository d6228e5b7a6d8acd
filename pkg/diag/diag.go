// Package diag carries line-oriented diagnostics from the graph builder, the
// version reconciler and the descriptor collaborators to the user.
//
// Every diagnostic has a [Severity]. Producers write to a [Sink]; the CLI
// routes them to a charmbracelet/log logger through [LogSink], while tests
// and the HTTP report use a [Collector].
package diag

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Info reports a change that was applied, such as a version upgrade.
	Info Severity = iota
	// Warning reports something skipped or ignored, such as a missing
	// dependency target.
	Warning
	// Error reports a module excluded from processing.
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler for JSON reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Diagnostic is one reported message. Module names the module it concerns,
// if any.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Module   string   `json:"module,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Module == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Module, d.Message)
}

// Sink receives diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// Infof reports an informational diagnostic to s. A nil sink discards it.
func Infof(s Sink, module, format string, args ...any) {
	report(s, Info, module, format, args...)
}

// Warnf reports a warning to s.
func Warnf(s Sink, module, format string, args ...any) {
	report(s, Warning, module, format, args...)
}

// Errorf reports an error diagnostic to s.
func Errorf(s Sink, module, format string, args ...any) {
	report(s, Error, module, format, args...)
}

func report(s Sink, sev Severity, module, format string, args ...any) {
	if s == nil {
		return
	}
	s.Report(Diagnostic{Severity: sev, Module: module, Message: fmt.Sprintf(format, args...)})
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Diagnostic) {}

// LogSink writes diagnostics to a charmbracelet/log logger, mapping
// severities to Info, Warn and Error levels.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink returns a LogSink writing to l. A nil logger uses log.Default().
func NewLogSink(l *log.Logger) *LogSink {
	if l == nil {
		l = log.Default()
	}
	return &LogSink{Logger: l}
}

func (s *LogSink) Report(d Diagnostic) {
	var kv []any
	if d.Module != "" {
		kv = append(kv, "module", d.Module)
	}
	switch d.Severity {
	case Error:
		s.Logger.Error(d.Message, kv...)
	case Warning:
		s.Logger.Warn(d.Message, kv...)
	default:
		s.Logger.Info(d.Message, kv...)
	}
}

// Collector records diagnostics in memory. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// All returns a copy of every recorded diagnostic in report order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Filter returns the recorded diagnostics with severity sev.
func (c *Collector) Filter(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.All() {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of recorded diagnostics with severity sev.
func (c *Collector) Count(sev Severity) int {
	return len(c.Filter(sev))
}

// Tee fans each diagnostic out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Report(d Diagnostic) {
	for _, s := range m {
		s.Report(d)
	}
}
