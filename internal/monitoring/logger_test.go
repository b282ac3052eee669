package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger_Capture(t *testing.T) {
	defer SetLogger(nil)

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Logf("year %d: %d findings", 2016, 3)

	if len(lines) != 1 || !strings.Contains(lines[0], "year 2016: 3 findings") {
		t.Errorf("captured lines = %v", lines)
	}
}

func TestSetLogger_NilMutes(t *testing.T) {
	defer SetLogger(nil)

	called := false
	SetLogger(func(string, ...interface{}) { called = true })
	SetLogger(nil)
	Logf("should be dropped")

	if called {
		t.Error("nil logger should mute output")
	}
}

func TestLogf_DefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should have a default sink")
	}
}
