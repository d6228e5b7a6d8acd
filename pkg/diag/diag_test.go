package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestCollector(t *testing.T) {
	var c Collector
	Infof(&c, "App", "upgraded %s", "Json")
	Warnf(&c, "App", "missing %s", "Widgets")
	Errorf(&c, "", "bad")

	if got := len(c.All()); got != 3 {
		t.Fatalf("len(All()) = %d, want 3", got)
	}
	if got := c.Count(Warning); got != 1 {
		t.Errorf("Count(Warning) = %d, want 1", got)
	}
	if got := c.Filter(Info)[0].Message; got != "upgraded Json" {
		t.Errorf("Message = %q, want %q", got, "upgraded Json")
	}
}

func TestNilSink(t *testing.T) {
	// must not panic
	Infof(nil, "App", "ignored")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	s := NewLogSink(l)

	Warnf(s, "App", "dependency %q not found", "Widgets")

	out := buf.String()
	if !strings.Contains(out, "WARN") {
		t.Errorf("output %q missing WARN level", out)
	}
	if !strings.Contains(out, "module=App") {
		t.Errorf("output %q missing module field", out)
	}
}

func TestTee(t *testing.T) {
	var a, b Collector
	s := Tee(&a, nil, &b)
	Errorf(s, "X", "boom")
	if a.Count(Error) != 1 || b.Count(Error) != 1 {
		t.Errorf("Tee did not deliver to both sinks")
	}
}

func TestSeverityString(t *testing.T) {
	tests := map[Severity]string{Info: "info", Warning: "warning", Error: "error"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestSeverityText(t *testing.T) {
	for _, sev := range []Severity{Info, Warning, Error} {
		text, _ := sev.MarshalText()
		var got Severity
		if err := got.UnmarshalText(text); err != nil || got != sev {
			t.Errorf("UnmarshalText(%q) = %v, %v, want %v", text, got, err, sev)
		}
	}
	var s Severity
	if err := s.UnmarshalText([]byte("fatal")); err == nil {
		t.Error("UnmarshalText(fatal) should fail")
	}
}
