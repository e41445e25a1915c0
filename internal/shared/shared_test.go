package shared

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestTimeFormatting(t *testing.T) {
	t.Run("round trip in UTC", func(t *testing.T) {
		loc := time.FixedZone("EST", -5*60*60)
		in := time.Date(2024, 3, 9, 7, 30, 0, 1500, loc)

		formatted := FormatTime(in)
		if formatted != "2024-03-09T12:30:00.000001500Z" {
			t.Errorf("FormatTime() = %s", formatted)
		}

		parsed, err := ParseTime(formatted)
		if err != nil {
			t.Fatalf("ParseTime() error = %v", err)
		}
		if !parsed.Equal(in) {
			t.Errorf("ParseTime() = %v, want %v", parsed, in)
		}
	})

	t.Run("lexical order matches chronological order", func(t *testing.T) {
		earlier := FormatTime(time.Date(2024, 1, 1, 9, 59, 59, 999, time.UTC))
		later := FormatTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
		if !(earlier < later) {
			t.Errorf("expected %s < %s", earlier, later)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		if _, err := ParseTime("yesterday"); err == nil {
			t.Error("expected error for invalid timestamp")
		}
	})
}

func TestStringPtr(t *testing.T) {
	if StringPtr("   ") != nil {
		t.Error("blank string should map to nil")
	}
	if got := StringPtr("  Frank Herbert "); got == nil || *got != "Frank Herbert" {
		t.Errorf("StringPtr() = %v", got)
	}
	if Deref(nil) != "" {
		t.Error("Deref(nil) should be empty")
	}
}

func TestLogging(t *testing.T) {
	t.Run("ParseLogLevel", func(t *testing.T) {
		tc := []struct {
			in   string
			want log.Level
		}{
			{in: "debug", want: log.DebugLevel},
			{in: " WARN ", want: log.WarnLevel},
			{in: "error", want: log.ErrorLevel},
			{in: "nonsense", want: log.InfoLevel},
			{in: "", want: log.InfoLevel},
		}

		for _, tt := range tc {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	})

	t.Run("WithLogger adds context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "sync")
		logger.Info("started")

		if !strings.Contains(buf.String(), "component=sync") {
			t.Errorf("expected component key in output, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b || len(a) != 36 {
		t.Errorf("expected distinct uuids, got %s and %s", a, b)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"checked": 2}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(compact) != `{"checked":2}` {
		t.Errorf("unexpected compact output %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(pretty) != "{\n  \"checked\": 2\n}" {
		t.Errorf("unexpected pretty output %s", pretty)
	}
}
