package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		filtered []string
	}{
		{
			level:    "trace",
			expected: []string{"trace msg", "debug msg", "info msg", "warn msg", "error msg"},
		},
		{
			level:    "info",
			expected: []string{"info msg", "warn msg", "error msg"},
			filtered: []string{"trace msg", "debug msg"},
		},
		{
			level:    "error",
			expected: []string{"error msg"},
			filtered: []string{"trace msg", "debug msg", "info msg", "warn msg"},
		},
	}

	for _, test := range tests {
		buf := new(bytes.Buffer)
		cl := NewConsoleLogger(buf, test.level)

		cl.Tracef("trace %s", "msg")
		cl.Debugf("debug %s", "msg")
		cl.Infof("info %s", "msg")
		cl.Warnf("warn %s", "msg")
		cl.Errorf("error %s", "msg")

		output := buf.String()
		for _, want := range test.expected {
			if !strings.Contains(output, want) {
				t.Errorf("level %q: output should contain %q, got:\n%s", test.level, want, output)
			}
		}
		for _, unwanted := range test.filtered {
			if strings.Contains(output, unwanted) {
				t.Errorf("level %q: output should not contain %q, got:\n%s", test.level, unwanted, output)
			}
		}
	}
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	buf := new(bytes.Buffer)
	cl := NewConsoleLogger(buf, "chatty")

	cl.Debugf("hidden")
	cl.Infof("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("debug output should be filtered at default level, got:\n%s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("info output should pass at default level, got:\n%s", output)
	}
}

func TestNilWriterDiscards(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	// Must not panic.
	cl.Infof("into the void")
}
