package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)

	Success("applied %d migration(s)", 2)
	Warning("no migrations found")
	Section("Schema")

	got := buf.String()
	for _, want := range []string{"applied 2 migration(s)\n", "no migrations found\n", "Schema", "══════"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	tests := map[string]string{
		"applied": "✓",
		"pending": "○",
		"failed":  "✗",
		"unknown": "•",
	}
	for status, icon := range tests {
		if got := StatusIcon(status); !strings.Contains(got, icon) {
			t.Errorf("StatusIcon(%q) = %q, want it to contain %q", status, got, icon)
		}
	}
}
