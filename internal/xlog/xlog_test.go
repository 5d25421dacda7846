package xlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogIncludesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Info("hello world", "k", 1)
	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("expected level tag in output: %q", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Fatalf("expected message in output: %q", out)
	}
	if !strings.Contains(out, "k=1") {
		t.Fatalf("expected key/value pair in output: %q", out)
	}
}

func TestSetLevelFiltersBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.SetLevel(LevelWarn)
	l.Debug("should not appear")
	l.Warn("should appear")
	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatal("debug message must be filtered below the minimum level")
	}
	if !strings.Contains(out, "should appear") {
		t.Fatal("warn message must pass the minimum level filter")
	}
}

func TestCritIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Crit("fatal condition")
	if !strings.Contains(buf.String(), "caller=") {
		t.Fatal("crit log must include a caller frame")
	}
}
