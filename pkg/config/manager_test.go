package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestGetValueWalksDottedPath(t *testing.T) {
	path := writeTestConfig(t, "mqtt:\n  host: broker.example\n  port: 1883\n")
	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	v, err := m.GetValue("mqtt.host")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v != "broker.example" {
		t.Fatalf("GetValue(mqtt.host) = %v, want broker.example", v)
	}
}

func TestSetValuePersistsAndCreatesSections(t *testing.T) {
	path := writeTestConfig(t, "mqtt:\n  host: broker.example\n")
	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.SetValue("telemetry.endpoint", "http://collector:4318"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	reloaded, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager (reload): %v", err)
	}
	v, err := reloaded.GetValue("telemetry.endpoint")
	if err != nil {
		t.Fatalf("GetValue after reload: %v", err)
	}
	if v != "http://collector:4318" {
		t.Fatalf("GetValue(telemetry.endpoint) = %v, want http://collector:4318", v)
	}
}

func TestGetSectionReturnsDeepCopy(t *testing.T) {
	path := writeTestConfig(t, "roi:\n  cam: 4\n")
	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	section, err := m.GetSection("roi")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	section["cam"] = 99

	again, err := m.GetSection("roi")
	if err != nil {
		t.Fatalf("GetSection (again): %v", err)
	}
	if again["cam"] == 99 {
		t.Fatalf("mutating a returned section leaked into the manager's state")
	}
}

func TestGetValueMissingPathIsAnError(t *testing.T) {
	path := writeTestConfig(t, "mqtt:\n  host: broker.example\n")
	m, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.GetValue("mqtt.nonexistent"); err == nil {
		t.Fatalf("expected an error for a missing path")
	}
}
