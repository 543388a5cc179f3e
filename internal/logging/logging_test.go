package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	logger.Info("search complete", map[string]interface{}{"atoms": 7})

	var entry struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry.Level != "info" || entry.Message != "search complete" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["atoms"] != float64(7) {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: WarnLevel, Output: &buf})

	logger.Debug("dropped", nil)
	logger.Info("dropped", nil)
	if buf.Len() != 0 {
		t.Errorf("below-threshold messages written: %s", buf.String())
	}

	logger.Warn("kept", nil)
	logger.Error("kept", nil)
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("got %d entries, want 2", got)
	}
}

func TestComponentTag(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf}).
		Component("walker")

	logger.Info("walk done", nil)
	if !strings.Contains(buf.String(), `"component":"walker"`) {
		t.Errorf("component tag missing: %s", buf.String())
	}
}

func TestComponentDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})
	parent.Component("child")

	parent.Info("from parent", nil)
	if strings.Contains(buf.String(), `"component"`) {
		t.Errorf("parent picked up the child's component: %s", buf.String())
	}
}

func TestHumanFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf}).
		Component("store")

	logger.Info("opened", map[string]interface{}{"path": "mnemo.db"})
	out := buf.String()
	if !strings.Contains(out, "[info]") || !strings.Contains(out, "(store)") {
		t.Errorf("human format missing level or component: %s", out)
	}
	if !strings.Contains(out, "path=mnemo.db") {
		t.Errorf("human format missing fields: %s", out)
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not write anywhere visible.
	Discard().Error("swallowed", map[string]interface{}{"k": "v"})
}
