package version

import (
	"strings"
	"testing"
)

func TestVersionStrings(t *testing.T) {
	v := String()
	if !strings.HasPrefix(v, "v") {
		t.Errorf("version string should start with v, got %s", v)
	}

	full := Full()
	if !strings.Contains(full, "Quantum Messenger") {
		t.Errorf("full version should contain project name, got %s", full)
	}
	if !strings.Contains(full, v) {
		t.Errorf("full version should contain version string, got %s", full)
	}
	if !strings.Contains(full, "2.0-quantum") || !strings.Contains(full, "1.1") {
		t.Errorf("full version should list envelope versions, got %s", full)
	}
}

func TestRevision(t *testing.T) {
	if Revision() == "" {
		t.Error("Revision should never be empty")
	}
}
